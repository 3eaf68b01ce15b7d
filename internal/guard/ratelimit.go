package guard

import (
	"sync"
	"time"
)

// LimiterConfig tunes a token-bucket rate limiter
type LimiterConfig struct {
	MaxRequests    float64
	TimeWindow     time.Duration
	BurstAllowance float64
	HistorySize    int
}

// DefaultLimiterConfig returns the limiter defaults
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxRequests:    100,
		TimeWindow:     time.Second,
		BurstAllowance: 20,
		HistorySize:    100,
	}
}

// LimiterStats is a point-in-time snapshot of limiter state
type LimiterStats struct {
	Service       string  `json:"service"`
	Tokens        float64 `json:"tokens"`
	MaxRequests   float64 `json:"max_requests"`
	Burst         float64 `json:"burst_allowance"`
	RejectionRate float64 `json:"rejection_rate"`
	TotalRequests int     `json:"total_requests"`
}

// RateLimiter is a token bucket with lazy, continuous refill. Tokens refill
// at MaxRequests per TimeWindow and are capped at MaxRequests + Burst.
type RateLimiter struct {
	service  string
	cfg      LimiterConfig
	now      func() time.Time
	onReject func(service string)

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	history    []bool // true = accepted
	histNext   int
	histLen    int
}

// NewRateLimiter creates a full bucket for the named service
func NewRateLimiter(service string, cfg LimiterConfig) *RateLimiter {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultLimiterConfig().HistorySize
	}
	now := time.Now
	return &RateLimiter{
		service:    service,
		cfg:        cfg,
		now:        now,
		tokens:     cfg.MaxRequests,
		lastRefill: now(),
		history:    make([]bool, cfg.HistorySize),
	}
}

// Acquire deducts n tokens if available, reporting whether the request
// was admitted. The outcome is appended to the bounded history.
func (l *RateLimiter) Acquire(n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	accepted := l.tokens >= n
	if accepted {
		l.tokens -= n
	} else if l.onReject != nil {
		l.onReject(l.service)
	}

	l.history[l.histNext] = accepted
	l.histNext = (l.histNext + 1) % len(l.history)
	if l.histLen < len(l.history) {
		l.histLen++
	}
	return accepted
}

// refill adds tokens for the elapsed time since the last refill.
// Caller holds the lock.
func (l *RateLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.lastRefill = now

	l.tokens += elapsed.Seconds() / l.cfg.TimeWindow.Seconds() * l.cfg.MaxRequests
	if cap := l.cfg.MaxRequests + l.cfg.BurstAllowance; l.tokens > cap {
		l.tokens = cap
	}
}

// Stats returns a point-in-time snapshot
func (l *RateLimiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	rejected := 0
	for i := 0; i < l.histLen; i++ {
		if !l.history[i] {
			rejected++
		}
	}
	rate := 0.0
	if l.histLen > 0 {
		rate = float64(rejected) / float64(l.histLen)
	}

	return LimiterStats{
		Service:       l.service,
		Tokens:        l.tokens,
		MaxRequests:   l.cfg.MaxRequests,
		Burst:         l.cfg.BurstAllowance,
		RejectionRate: rate,
		TotalRequests: l.histLen,
	}
}

// LimiterGroup keys rate limiters by service name, creating them on first use
type LimiterGroup struct {
	mu       sync.Mutex
	cfg      LimiterConfig
	limiters map[string]*RateLimiter
	onReject func(service string)
}

// NewLimiterGroup creates a group that applies cfg to new limiters
func NewLimiterGroup(cfg LimiterConfig) *LimiterGroup {
	return &LimiterGroup{
		cfg:      cfg,
		limiters: make(map[string]*RateLimiter),
	}
}

// OnReject installs a rejection hook on every limiter in the group,
// current and future. Used to count rejections as a metric.
func (g *LimiterGroup) OnReject(fn func(service string)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.onReject = fn
	for _, l := range g.limiters {
		l.mu.Lock()
		l.onReject = fn
		l.mu.Unlock()
	}
}

// Get returns the limiter for a service, creating it if absent
func (g *LimiterGroup) Get(service string) *RateLimiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[service]
	if !ok {
		l = NewRateLimiter(service, g.cfg)
		l.onReject = g.onReject
		g.limiters[service] = l
	}
	return l
}

// Snapshot returns stats for every known limiter
func (g *LimiterGroup) Snapshot() map[string]LimiterStats {
	g.mu.Lock()
	limiters := make([]*RateLimiter, 0, len(g.limiters))
	for _, l := range g.limiters {
		limiters = append(limiters, l)
	}
	g.mu.Unlock()

	out := make(map[string]LimiterStats, len(limiters))
	for _, l := range limiters {
		out[l.service] = l.Stats()
	}
	return out
}
