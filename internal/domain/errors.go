package domain

import "errors"

var (
	// ErrBreakerOpen is returned when a circuit breaker rejects a call
	ErrBreakerOpen = errors.New("circuit breaker is open")

	// ErrRateLimitExceeded is returned when a token bucket has no capacity
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrActionTimeout is returned when an action handler exceeds its timeout
	ErrActionTimeout = errors.New("action timed out")

	// ErrHandlerMissing is returned when no handler is registered for an action type
	ErrHandlerMissing = errors.New("no handler registered for action type")

	// ErrPlanTimeout is returned when a plan exceeds twice its estimated duration
	ErrPlanTimeout = errors.New("recovery plan timed out")

	// ErrGraphCycle is returned when the induced recovery subgraph is cyclic
	ErrGraphCycle = errors.New("dependency cycle detected")

	// ErrPlanNotFound is returned when a plan ID is not active or in history
	ErrPlanNotFound = errors.New("recovery plan not found")

	// ErrServiceNotFound is returned when a service is not in the graph
	ErrServiceNotFound = errors.New("service not found")

	// ErrEmergencyStop is returned while the control plane is frozen
	ErrEmergencyStop = errors.New("emergency stop is active")

	// ErrTooManyPlans is returned when the active plan cap is reached
	ErrTooManyPlans = errors.New("active plan limit reached")
)
