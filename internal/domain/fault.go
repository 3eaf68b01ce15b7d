package domain

import "time"

// FaultType classifies the failure mode reported by the detection layer
type FaultType string

const (
	FaultServiceUnavailable FaultType = "service_unavailable"
	FaultHighLatency        FaultType = "high_latency"
	FaultHighErrorRate      FaultType = "high_error_rate"
	FaultMemoryLeak         FaultType = "memory_leak"
	FaultResourceExhaustion FaultType = "resource_exhaustion"
	FaultNetworkPartition   FaultType = "network_partition"
	FaultDependencyFailure  FaultType = "dependency_failure"
)

// Severity of a fault signal
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PlanPriority maps fault severity to recovery plan priority (1 = highest)
func (s Severity) PlanPriority() int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 5
	default:
		return 8
	}
}

// FaultSignal is emitted by the external fault-detection collaborator
type FaultSignal struct {
	ID          string    `json:"id"`
	Type        FaultType `json:"type" binding:"required"`
	Severity    Severity  `json:"severity" binding:"required"`
	Service     string    `json:"service" binding:"required"`
	Description string    `json:"description,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}

// HealthState is the per-metric status reported by the metrics collaborator
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthWarning   HealthState = "warning"
	HealthUnhealthy HealthState = "unhealthy"
	HealthUnknown   HealthState = "unknown"
)

// Score maps a collaborator health state onto a numeric health score
func (h HealthState) Score() float64 {
	switch h {
	case HealthHealthy:
		return 1.0
	case HealthWarning:
		return 0.7
	case HealthUnhealthy:
		return 0.3
	default:
		return 0.5
	}
}

// HealthSnapshot is a named set of metric states for one service
type HealthSnapshot struct {
	Service string                 `json:"service" binding:"required"`
	Metrics map[string]HealthState `json:"metrics" binding:"required"`
	TakenAt time.Time              `json:"taken_at"`
}
