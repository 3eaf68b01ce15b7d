package guard

import (
	"testing"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegradationLevelSelection(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.DegradationLevel
	}{
		{0.9, domain.DegradationNone},
		{0.8, domain.DegradationMinimal},
		{0.7, domain.DegradationMinimal},
		{0.5, domain.DegradationModerate},
		{0.3, domain.DegradationSevere},
		{0.1, domain.DegradationCritical},
	}

	m := NewDegradationManager("svc-a", DefaultDegradeConfig())
	for _, tt := range tests {
		got := m.Evaluate(map[string]float64{"health": tt.score})
		assert.Equal(t, tt.want, got, "score %.2f", tt.score)
	}
}

func TestDegradationFeatureTripsAtAndAboveLevel(t *testing.T) {
	cfg := DefaultDegradeConfig()
	cfg.Features = map[string]domain.DegradationLevel{
		"recommendations": domain.DegradationMinimal,
		"exports":         domain.DegradationSevere,
	}
	m := NewDegradationManager("svc-a", cfg)

	m.Evaluate(map[string]float64{"health": 0.9})
	assert.True(t, m.IsFeatureEnabled("recommendations"))
	assert.True(t, m.IsFeatureEnabled("exports"))

	m.Evaluate(map[string]float64{"health": 0.7})
	assert.False(t, m.IsFeatureEnabled("recommendations"))
	assert.True(t, m.IsFeatureEnabled("exports"))

	// More severe level keeps the minimal-tripped feature disabled
	m.Evaluate(map[string]float64{"health": 0.5})
	assert.False(t, m.IsFeatureEnabled("recommendations"))
	assert.True(t, m.IsFeatureEnabled("exports"))

	m.Evaluate(map[string]float64{"health": 0.3})
	assert.False(t, m.IsFeatureEnabled("recommendations"))
	assert.False(t, m.IsFeatureEnabled("exports"))
}

func TestDegradationRecoveryReenablesFeatures(t *testing.T) {
	cfg := DefaultDegradeConfig()
	cfg.Features = map[string]domain.DegradationLevel{
		"recommendations": domain.DegradationMinimal,
	}
	m := NewDegradationManager("svc-a", cfg)

	m.Evaluate(map[string]float64{"health": 0.5})
	require.False(t, m.IsFeatureEnabled("recommendations"))

	m.Evaluate(map[string]float64{"health": 0.95})
	assert.True(t, m.IsFeatureEnabled("recommendations"))
	assert.Equal(t, domain.DegradationNone, m.Level())
}

func TestDegradationUnknownFeatureEnabled(t *testing.T) {
	m := NewDegradationManager("svc-a", DefaultDegradeConfig())
	assert.True(t, m.IsFeatureEnabled("not-configured"))
}

func TestDegradationTransitionHistory(t *testing.T) {
	cfg := DefaultDegradeConfig()
	cfg.HistorySize = 2
	m := NewDegradationManager("svc-a", cfg)

	m.Evaluate(map[string]float64{"health": 0.7}) // none -> minimal
	m.Evaluate(map[string]float64{"health": 0.5}) // minimal -> moderate
	m.Evaluate(map[string]float64{"health": 0.1}) // moderate -> critical

	stats := m.Stats()
	require.Len(t, stats.Transitions, 2) // bounded
	assert.Equal(t, domain.DegradationMinimal, stats.Transitions[0].From)
	assert.Equal(t, domain.DegradationModerate, stats.Transitions[0].To)
	assert.Equal(t, domain.DegradationCritical, stats.Transitions[1].To)
}

func TestDegradationMeanOfMetrics(t *testing.T) {
	m := NewDegradationManager("svc-a", DefaultDegradeConfig())

	level := m.Evaluate(map[string]float64{"cpu": 1.0, "errors": 0.2})
	assert.Equal(t, domain.DegradationModerate, level)

	// No metrics means healthy
	assert.Equal(t, domain.DegradationNone, m.Evaluate(nil))
}
