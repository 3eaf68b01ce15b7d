package integrations

import (
	"context"
	"log"
	"time"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/orchestrator"
)

// SimulatedActions logs each infrastructure action instead of performing
// it. Used in local development and wherever no cluster or cloud account
// is reachable; guard-backed actions still run for real.
type SimulatedActions struct {
	delay time.Duration
}

// NewSimulatedActions creates simulated handlers with an artificial
// per-action delay
func NewSimulatedActions(delay time.Duration) *SimulatedActions {
	return &SimulatedActions{delay: delay}
}

// Register installs simulated handlers for the infrastructure action types
func (a *SimulatedActions) Register(registry *orchestrator.HandlerRegistry) {
	for _, t := range []domain.RecoveryActionType{
		domain.ActionServiceRestart,
		domain.ActionTrafficRedirect,
		domain.ActionScaleUp,
		domain.ActionFailover,
		domain.ActionCacheClear,
		domain.ActionRollback,
	} {
		registry.RegisterFunc(t, a.simulate(t))
	}
}

func (a *SimulatedActions) simulate(t domain.RecoveryActionType) domain.ActionHandlerFunc {
	return func(ctx context.Context, action *domain.RecoveryAction) (bool, error) {
		if a.delay > 0 {
			timer := time.NewTimer(a.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false, ctx.Err()
			case <-timer.C:
			}
		}
		log.Printf("Simulated %s for %s (params %v)", t, action.TargetService, action.Parameters)
		return true, nil
	}
}
