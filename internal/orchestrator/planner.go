package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"github.com/meshguard/backend-go/internal/domain"
)

// planTemplates maps a fault category to its ordered action sequence
var planTemplates = map[domain.FaultType][]domain.RecoveryActionType{
	domain.FaultServiceUnavailable: {
		domain.ActionCircuitBreaker,
		domain.ActionServiceRestart,
		domain.ActionTrafficRedirect,
		domain.ActionAlertEscalation,
	},
	domain.FaultHighLatency: {
		domain.ActionEnableDegraded,
		domain.ActionScaleUp,
		domain.ActionTrafficRedirect,
	},
	domain.FaultHighErrorRate: {
		domain.ActionCircuitBreaker,
		domain.ActionEnableDegraded,
		domain.ActionRollback,
		domain.ActionAlertEscalation,
	},
	domain.FaultMemoryLeak: {
		domain.ActionServiceRestart,
		domain.ActionScaleUp,
		domain.ActionAlertEscalation,
	},
	domain.FaultResourceExhaustion: {
		domain.ActionScaleUp,
		domain.ActionCacheClear,
		domain.ActionEnableDegraded,
	},
	domain.FaultNetworkPartition: {
		domain.ActionTrafficRedirect,
		domain.ActionFailover,
		domain.ActionAlertEscalation,
	},
	domain.FaultDependencyFailure: {
		domain.ActionCircuitBreaker,
		domain.ActionFailover,
		domain.ActionEnableDegraded,
		domain.ActionAlertEscalation,
	},
}

// genericTemplate covers fault types without a dedicated sequence
var genericTemplate = []domain.RecoveryActionType{
	domain.ActionServiceRestart,
	domain.ActionAlertEscalation,
}

type actionDefaults struct {
	timeout    time.Duration
	maxRetries int
}

// defaultsByType carries per-action-type timeout and retry budgets
var defaultsByType = map[domain.RecoveryActionType]actionDefaults{
	domain.ActionCircuitBreaker:  {timeout: 5 * time.Second, maxRetries: 1},
	domain.ActionServiceRestart:  {timeout: 60 * time.Second, maxRetries: 3},
	domain.ActionTrafficRedirect: {timeout: 30 * time.Second, maxRetries: 2},
	domain.ActionScaleUp:         {timeout: 120 * time.Second, maxRetries: 2},
	domain.ActionFailover:        {timeout: 90 * time.Second, maxRetries: 2},
	domain.ActionCacheClear:      {timeout: 15 * time.Second, maxRetries: 1},
	domain.ActionRollback:        {timeout: 120 * time.Second, maxRetries: 1},
	domain.ActionEnableDegraded:  {timeout: 5 * time.Second, maxRetries: 1},
	domain.ActionAlertEscalation: {timeout: 10 * time.Second, maxRetries: 3},
}

// BuildPlan materializes a recovery plan for the fault from the template
// table. Actions are strictly chained: each depends on the previous one.
// When an impact analysis is supplied it informs the estimated duration
// and bumps priority for likely cascades.
func (o *Orchestrator) BuildPlan(fault domain.FaultSignal, impact *domain.ImpactAnalysis) *domain.RecoveryPlan {
	template, ok := planTemplates[fault.Type]
	if !ok {
		template = genericTemplate
	}

	plan := &domain.RecoveryPlan{
		ID:        uuid.New().String()[:8],
		FaultID:   fault.ID,
		Service:   fault.Service,
		FaultType: fault.Type,
		Priority:  fault.Severity.PlanPriority(),
		Status:    domain.PlanPending,
		CreatedAt: time.Now().UTC(),
	}

	var estimated time.Duration
	prevID := ""
	for _, actionType := range template {
		defaults, ok := defaultsByType[actionType]
		if !ok {
			defaults = actionDefaults{timeout: 30 * time.Second, maxRetries: 1}
		}

		action := &domain.RecoveryAction{
			ID:            uuid.New().String()[:8],
			Type:          actionType,
			TargetService: fault.Service,
			Parameters: map[string]string{
				"fault_id":    fault.ID,
				"fault_type":  string(fault.Type),
				"severity":    string(fault.Severity),
				"description": fault.Description,
			},
			Timeout:    defaults.timeout,
			MaxRetries: defaults.maxRetries,
			Status:     domain.ActionPending,
		}
		if prevID != "" {
			action.DependsOn = []string{prevID}
		}
		prevID = action.ID

		plan.Actions = append(plan.Actions, action)
		estimated += defaults.timeout
	}

	plan.EstimatedDuration = estimated
	if impact != nil {
		if d := time.Duration(impact.EstimatedRecoverySecs * float64(time.Second)); d > estimated {
			plan.EstimatedDuration = d
		}
		if impact.CascadeProbability > o.cfg.EscalationThreshold && plan.Priority > 1 {
			plan.Priority--
		}
	}
	return plan
}
