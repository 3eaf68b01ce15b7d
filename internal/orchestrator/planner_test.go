package orchestrator

import (
	"testing"
	"time"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(cfg Config) *Orchestrator {
	return New(cfg, NewHandlerRegistry(), nil, nil)
}

func testFault(faultType domain.FaultType, severity domain.Severity) domain.FaultSignal {
	return domain.FaultSignal{
		ID:         "fault-1",
		Type:       faultType,
		Severity:   severity,
		Service:    "checkout",
		DetectedAt: time.Now().UTC(),
	}
}

func TestBuildPlanFollowsTemplate(t *testing.T) {
	o := newTestOrchestrator(DefaultConfig())
	plan := o.BuildPlan(testFault(domain.FaultServiceUnavailable, domain.SeverityHigh), nil)

	require.Len(t, plan.Actions, 4)
	assert.Equal(t, domain.ActionCircuitBreaker, plan.Actions[0].Type)
	assert.Equal(t, domain.ActionServiceRestart, plan.Actions[1].Type)
	assert.Equal(t, domain.ActionTrafficRedirect, plan.Actions[2].Type)
	assert.Equal(t, domain.ActionAlertEscalation, plan.Actions[3].Type)

	for _, a := range plan.Actions {
		assert.Equal(t, "checkout", a.TargetService)
		assert.Equal(t, domain.ActionPending, a.Status)
	}
}

func TestBuildPlanChainsActions(t *testing.T) {
	o := newTestOrchestrator(DefaultConfig())
	plan := o.BuildPlan(testFault(domain.FaultHighLatency, domain.SeverityMedium), nil)

	require.Len(t, plan.Actions, 3)
	assert.Empty(t, plan.Actions[0].DependsOn)
	assert.Equal(t, []string{plan.Actions[0].ID}, plan.Actions[1].DependsOn)
	assert.Equal(t, []string{plan.Actions[1].ID}, plan.Actions[2].DependsOn)
}

func TestBuildPlanPriorityFromSeverity(t *testing.T) {
	o := newTestOrchestrator(DefaultConfig())

	tests := []struct {
		severity domain.Severity
		want     int
	}{
		{domain.SeverityCritical, 1},
		{domain.SeverityHigh, 3},
		{domain.SeverityMedium, 5},
		{domain.SeverityLow, 8},
	}
	for _, tt := range tests {
		plan := o.BuildPlan(testFault(domain.FaultMemoryLeak, tt.severity), nil)
		assert.Equal(t, tt.want, plan.Priority, "severity %s", tt.severity)
	}
}

func TestBuildPlanUnknownFaultUsesGenericTemplate(t *testing.T) {
	o := newTestOrchestrator(DefaultConfig())
	plan := o.BuildPlan(testFault(domain.FaultType("mystery"), domain.SeverityLow), nil)

	require.Len(t, plan.Actions, 2)
	assert.Equal(t, domain.ActionServiceRestart, plan.Actions[0].Type)
	assert.Equal(t, domain.ActionAlertEscalation, plan.Actions[1].Type)
}

func TestBuildPlanTimeoutsFromDefaultsTable(t *testing.T) {
	o := newTestOrchestrator(DefaultConfig())
	plan := o.BuildPlan(testFault(domain.FaultServiceUnavailable, domain.SeverityHigh), nil)

	restart := plan.Actions[1]
	assert.Equal(t, 60*time.Second, restart.Timeout)
	assert.Equal(t, 3, restart.MaxRetries)

	var sum time.Duration
	for _, a := range plan.Actions {
		sum += a.Timeout
	}
	assert.Equal(t, sum, plan.EstimatedDuration)
}

func TestBuildPlanImpactInformsEstimate(t *testing.T) {
	o := newTestOrchestrator(DefaultConfig())
	impact := &domain.ImpactAnalysis{
		FailedService:         "checkout",
		EstimatedRecoverySecs: 600,
		CascadeProbability:    0.8,
	}

	plan := o.BuildPlan(testFault(domain.FaultServiceUnavailable, domain.SeverityHigh), impact)

	assert.Equal(t, 600*time.Second, plan.EstimatedDuration)
	// Likely cascade bumps priority one step
	assert.Equal(t, 2, plan.Priority)
}

func TestBuildPlanCriticalPriorityNotBumpedBelowOne(t *testing.T) {
	o := newTestOrchestrator(DefaultConfig())
	impact := &domain.ImpactAnalysis{CascadeProbability: 0.95}

	plan := o.BuildPlan(testFault(domain.FaultServiceUnavailable, domain.SeverityCritical), impact)
	assert.Equal(t, 1, plan.Priority)
}
