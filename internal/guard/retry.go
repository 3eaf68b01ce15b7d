package guard

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryStrategy selects the backoff curve between attempts
type RetryStrategy string

const (
	RetryFixed       RetryStrategy = "fixed"
	RetryExponential RetryStrategy = "exponential"
	RetryLinear      RetryStrategy = "linear"
	RetryJittered    RetryStrategy = "jittered"
)

// RetryPolicy retries a failing call with configurable backoff
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Strategy    RetryStrategy
	Jitter      bool
}

// DefaultRetryPolicy returns the retry defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Strategy:    RetryExponential,
		Jitter:      true,
	}
}

// Delay computes the backoff before retrying after the given zero-based
// attempt. Jitter is applied first; MaxDelay bounds the final value.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	var d time.Duration
	switch p.Strategy {
	case RetryFixed:
		d = p.BaseDelay
	case RetryLinear:
		d = time.Duration(float64(p.BaseDelay) * float64(attempt+1))
	default: // exponential and jittered
		d = time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	}

	if p.Jitter || p.Strategy == RetryJittered {
		// Spread retries across callers to avoid thundering herds
		d += time.Duration(rand.Float64() * 0.1 * float64(d))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Execute invokes fn up to MaxAttempts times, sleeping between attempts.
// The last failure is returned when attempts are exhausted; context
// cancellation during backoff aborts early with the context error.
func (p RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
