// Package integrations provides the deployment-specific action handlers
// wired into the orchestrator's registry: protection primitive actions,
// Kubernetes operations, AWS operations, and simulated stand-ins for
// environments without either.
package integrations

import (
	"context"
	"fmt"
	"log"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/guard"
	"github.com/meshguard/backend-go/internal/orchestrator"
)

// GuardActions implements the recovery actions that act on the protection
// primitives rather than on infrastructure
type GuardActions struct {
	guards *guard.Set
}

// NewGuardActions creates guard-backed action handlers
func NewGuardActions(guards *guard.Set) *GuardActions {
	return &GuardActions{guards: guards}
}

// Register installs the guard-backed handlers
func (a *GuardActions) Register(registry *orchestrator.HandlerRegistry) {
	registry.RegisterFunc(domain.ActionCircuitBreaker, a.tripBreaker)
	registry.RegisterFunc(domain.ActionEnableDegraded, a.enableDegradation)
	registry.RegisterFunc(domain.ActionAlertEscalation, a.noteEscalation)
}

// tripBreaker forces the target's breaker open so callers fail fast while
// the rest of the plan repairs the service
func (a *GuardActions) tripBreaker(_ context.Context, action *domain.RecoveryAction) (bool, error) {
	a.guards.Breakers.Get(action.TargetService).ForceOpen()
	return true, nil
}

// enableDegradation forces the target into a degraded mode, shedding the
// features configured for that level
func (a *GuardActions) enableDegradation(_ context.Context, action *domain.RecoveryAction) (bool, error) {
	level := domain.DegradationLevel(action.Parameters["level"])
	if level == "" {
		level = domain.DegradationModerate
	}
	if level.Rank() == 0 && level != domain.DegradationNone {
		return false, fmt.Errorf("unknown degradation level %q", action.Parameters["level"])
	}
	a.guards.Degraders.Get(action.TargetService).ForceLevel(level)
	return true, nil
}

// noteEscalation marks the alert step done; actual operator notification
// is the coordinator's job
func (a *GuardActions) noteEscalation(_ context.Context, action *domain.RecoveryAction) (bool, error) {
	log.Printf("Alert escalation step for %s acknowledged", action.TargetService)
	return true, nil
}
