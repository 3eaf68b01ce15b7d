package domain

import (
	"context"
	"time"
)

// RecoveryActionType identifies a kind of corrective action
type RecoveryActionType string

const (
	ActionCircuitBreaker   RecoveryActionType = "circuit_breaker"
	ActionServiceRestart   RecoveryActionType = "service_restart"
	ActionTrafficRedirect  RecoveryActionType = "traffic_redirect"
	ActionScaleUp          RecoveryActionType = "scale_up"
	ActionFailover         RecoveryActionType = "failover"
	ActionCacheClear       RecoveryActionType = "cache_clear"
	ActionRollback         RecoveryActionType = "rollback"
	ActionEnableDegraded   RecoveryActionType = "enable_degradation"
	ActionAlertEscalation  RecoveryActionType = "alert_escalation"
)

// ActionStatus describes an action's execution state
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
	ActionSkipped    ActionStatus = "skipped"
)

// Terminal reports whether the status is final
func (s ActionStatus) Terminal() bool {
	return s == ActionCompleted || s == ActionFailed || s == ActionSkipped
}

// PlanStatus describes a recovery plan's lifecycle state
type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
	PlanFailed     PlanStatus = "failed"
)

// RecoveryAction is one step of a recovery plan. Mutated only by its own
// execution; immutable once the owning plan finishes.
type RecoveryAction struct {
	ID            string             `json:"id"`
	Type          RecoveryActionType `json:"type"`
	TargetService string             `json:"target_service"`
	Parameters    map[string]string  `json:"parameters,omitempty"`
	Timeout       time.Duration      `json:"timeout"`
	RetryCount    int                `json:"retry_count"`
	MaxRetries    int                `json:"max_retries"`
	DependsOn     []string           `json:"depends_on,omitempty"`
	Status        ActionStatus       `json:"status"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// RecoveryPlan is a dependency-ordered set of actions for one fault
type RecoveryPlan struct {
	ID                string            `json:"id"`
	FaultID           string            `json:"fault_id"`
	Service           string            `json:"service"`
	FaultType         FaultType         `json:"fault_type"`
	Actions           []*RecoveryAction `json:"actions"`
	Priority          int               `json:"priority"`
	EstimatedDuration time.Duration     `json:"estimated_duration"`
	ActualDuration    time.Duration     `json:"actual_duration"`
	SuccessRate       float64           `json:"success_rate"`
	Status            PlanStatus        `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// ActionHandler performs the physical effect of one action type.
// Implementations are deployment-specific and injected at startup;
// the orchestrator treats them as opaque.
type ActionHandler interface {
	Execute(ctx context.Context, action *RecoveryAction) (bool, error)
}

// ActionHandlerFunc adapts a function to the ActionHandler interface
type ActionHandlerFunc func(ctx context.Context, action *RecoveryAction) (bool, error)

// Execute implements ActionHandler
func (f ActionHandlerFunc) Execute(ctx context.Context, action *RecoveryAction) (bool, error) {
	return f(ctx, action)
}
