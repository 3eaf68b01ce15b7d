package guard

import (
	"log"
	"sync"
	"time"

	"github.com/meshguard/backend-go/internal/domain"
)

// BreakerState is the circuit breaker state machine position
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Rank maps the state to its numeric gauge value (0=closed, 1=half_open,
// 2=open)
func (s BreakerState) Rank() int {
	switch s {
	case BreakerHalfOpen:
		return 1
	case BreakerOpen:
		return 2
	default:
		return 0
	}
}

// BreakerConfig tunes a circuit breaker
type BreakerConfig struct {
	FailureThreshold     int
	SuccessThreshold     int
	Timeout              time.Duration
	HalfOpenMaxCalls     int
	FailureRateThreshold float64
	MinimumThroughput    int
	HistorySize          int
}

// DefaultBreakerConfig returns the breaker defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:     5,
		SuccessThreshold:     2,
		Timeout:              30 * time.Second,
		HalfOpenMaxCalls:     3,
		FailureRateThreshold: 0.5,
		MinimumThroughput:    10,
		HistorySize:          100,
	}
}

// BreakerStats is a point-in-time snapshot of breaker state
type BreakerStats struct {
	Service       string       `json:"service"`
	State         BreakerState `json:"state"`
	FailureCount  int          `json:"failure_count"`
	SuccessCount  int          `json:"success_count"`
	HalfOpenCalls int          `json:"half_open_calls"`
	TotalCalls    int          `json:"total_calls"`
	FailureRate   float64      `json:"failure_rate"`
	LastFailureAt *time.Time   `json:"last_failure_at,omitempty"`
}

// CircuitBreaker guards calls to a single service. All state transitions
// happen under the breaker's own lock; independent services never contend.
type CircuitBreaker struct {
	service      string
	cfg          BreakerConfig
	now          func() time.Time
	onTransition func(service string, state BreakerState)

	mu            sync.Mutex
	state         BreakerState
	failureCount  int
	successCount  int
	halfOpenCalls int
	lastFailure   time.Time
	history       []bool // call outcomes, true = success
	histNext      int
	histLen       int
}

// NewCircuitBreaker creates a closed breaker for the named service
func NewCircuitBreaker(service string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultBreakerConfig().HistorySize
	}
	return &CircuitBreaker{
		service: service,
		cfg:     cfg,
		now:     time.Now,
		state:   BreakerClosed,
		history: make([]bool, cfg.HistorySize),
	}
}

// Call executes fn if the breaker admits it. A rejected call returns
// domain.ErrBreakerOpen without invoking fn; otherwise fn's error is
// recorded and returned as-is.
func (b *CircuitBreaker) Call(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

func (b *CircuitBreaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.cfg.Timeout {
			return domain.ErrBreakerOpen
		}
		b.transition(BreakerHalfOpen)
		b.halfOpenCalls = 0
		b.successCount = 0
		fallthrough
	case BreakerHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return domain.ErrBreakerOpen
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *CircuitBreaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history[b.histNext] = success
	b.histNext = (b.histNext + 1) % len(b.history)
	if b.histLen < len(b.history) {
		b.histLen++
	}

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

func (b *CircuitBreaker) onSuccess() {
	switch b.state {
	case BreakerHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.transition(BreakerClosed)
			b.failureCount = 0
			b.successCount = 0
		}
	case BreakerClosed:
		// Decaying failure model rather than a hard reset
		if b.failureCount > 0 {
			b.failureCount--
		}
	}
}

func (b *CircuitBreaker) onFailure() {
	b.failureCount++
	b.lastFailure = b.now()

	switch b.state {
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
		b.halfOpenCalls = 0
	case BreakerClosed:
		if b.failureCount >= b.cfg.FailureThreshold || b.recentRateTripped() {
			b.transition(BreakerOpen)
		}
	}
}

// recentRateTripped checks the failed fraction over the last
// MinimumThroughput recorded calls. Caller holds the lock.
func (b *CircuitBreaker) recentRateTripped() bool {
	if b.cfg.MinimumThroughput <= 0 || b.histLen < b.cfg.MinimumThroughput {
		return false
	}
	failed := 0
	for i := 1; i <= b.cfg.MinimumThroughput; i++ {
		idx := (b.histNext - i + len(b.history)) % len(b.history)
		if !b.history[idx] {
			failed++
		}
	}
	return float64(failed)/float64(b.cfg.MinimumThroughput) >= b.cfg.FailureRateThreshold
}

// transition runs under the breaker lock; the hook must not call back
// into the breaker.
func (b *CircuitBreaker) transition(next BreakerState) {
	if b.state == next {
		return
	}
	log.Printf("Circuit breaker %s: %s -> %s", b.service, b.state, next)
	b.state = next
	if b.onTransition != nil {
		b.onTransition(b.service, next)
	}
}

// ForceOpen trips the breaker regardless of call history. Used by recovery
// actions that isolate a failing service; the normal timeout and half-open
// probing take it from there.
func (b *CircuitBreaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.now()
	b.transition(BreakerOpen)
}

// State returns the current breaker state
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a point-in-time snapshot
func (b *CircuitBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := 0
	for i := 0; i < b.histLen; i++ {
		if !b.history[i] {
			failed++
		}
	}
	rate := 0.0
	if b.histLen > 0 {
		rate = float64(failed) / float64(b.histLen)
	}

	stats := BreakerStats{
		Service:       b.service,
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		HalfOpenCalls: b.halfOpenCalls,
		TotalCalls:    b.histLen,
		FailureRate:   rate,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		stats.LastFailureAt = &t
	}
	return stats
}

// BreakerGroup keys circuit breakers by service name, creating them on first use
type BreakerGroup struct {
	mu           sync.Mutex
	cfg          BreakerConfig
	breakers     map[string]*CircuitBreaker
	onTransition func(service string, state BreakerState)
}

// NewBreakerGroup creates a group that applies cfg to new breakers
func NewBreakerGroup(cfg BreakerConfig) *BreakerGroup {
	return &BreakerGroup{
		cfg:      cfg,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// OnTransition installs a state-change hook on every breaker in the group,
// current and future. Used to publish breaker state as a gauge.
func (g *BreakerGroup) OnTransition(fn func(service string, state BreakerState)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.onTransition = fn
	for _, b := range g.breakers {
		b.mu.Lock()
		b.onTransition = fn
		b.mu.Unlock()
	}
}

// Get returns the breaker for a service, creating it if absent
func (g *BreakerGroup) Get(service string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[service]
	if !ok {
		b = NewCircuitBreaker(service, g.cfg)
		b.onTransition = g.onTransition
		g.breakers[service] = b
	}
	return b
}

// Snapshot returns stats for every known breaker
func (g *BreakerGroup) Snapshot() map[string]BreakerStats {
	g.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(g.breakers))
	for _, b := range g.breakers {
		breakers = append(breakers, b)
	}
	g.mu.Unlock()

	out := make(map[string]BreakerStats, len(breakers))
	for _, b := range breakers {
		out[b.service] = b.Stats()
	}
	return out
}
