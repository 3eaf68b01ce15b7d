// Package guard holds the per-service protection primitives: circuit
// breakers, token-bucket rate limiters, retry policies, and degradation
// managers. One instance of each exists per service key, each behind its
// own lock.
package guard

import (
	"fmt"

	"github.com/meshguard/backend-go/internal/domain"
)

// Config bundles primitive defaults applied to services on first use
type Config struct {
	Breaker BreakerConfig
	Limiter LimiterConfig
	Degrade DegradeConfig
	Retry   RetryPolicy
}

// DefaultConfig returns defaults for every primitive
func DefaultConfig() Config {
	return Config{
		Breaker: DefaultBreakerConfig(),
		Limiter: DefaultLimiterConfig(),
		Degrade: DefaultDegradeConfig(),
		Retry:   DefaultRetryPolicy(),
	}
}

// ServiceStats combines all primitive snapshots for one service
type ServiceStats struct {
	Breaker     BreakerStats `json:"breaker"`
	Limiter     LimiterStats `json:"limiter"`
	Degradation DegradeStats `json:"degradation"`
}

// Set owns the keyed primitive groups for the whole control plane
type Set struct {
	Breakers  *BreakerGroup
	Limiters  *LimiterGroup
	Degraders *DegradeGroup
	Retry     RetryPolicy
}

// NewSet creates primitive groups from cfg
func NewSet(cfg Config) *Set {
	return &Set{
		Breakers:  NewBreakerGroup(cfg.Breaker),
		Limiters:  NewLimiterGroup(cfg.Limiter),
		Degraders: NewDegradeGroup(cfg.Degrade),
		Retry:     cfg.Retry,
	}
}

// Allow admits one unit of work for the named service. A rejected
// acquisition returns ErrRateLimitExceeded without attempting the work.
func (s *Set) Allow(service string) error {
	if !s.Limiters.Get(service).Acquire(1) {
		return fmt.Errorf("%w: %s", domain.ErrRateLimitExceeded, service)
	}
	return nil
}

// ServiceStats returns the combined snapshot for one service, creating
// primitives for it if they do not exist yet
func (s *Set) ServiceStats(service string) ServiceStats {
	return ServiceStats{
		Breaker:     s.Breakers.Get(service).Stats(),
		Limiter:     s.Limiters.Get(service).Stats(),
		Degradation: s.Degraders.Get(service).Stats(),
	}
}
