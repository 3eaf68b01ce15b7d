package domain

// ServiceStatus describes the current health of a registered service
type ServiceStatus string

const (
	StatusHealthy   ServiceStatus = "healthy"
	StatusDegraded  ServiceStatus = "degraded"
	StatusUnhealthy ServiceStatus = "unhealthy"
	StatusUnknown   ServiceStatus = "unknown"
)

// DependencyType classifies how strongly a service depends on another
type DependencyType string

const (
	DependencyHard     DependencyType = "hard"
	DependencySoft     DependencyType = "soft"
	DependencyOptional DependencyType = "optional"
	DependencyCircular DependencyType = "circular"
)

// CascadeWeight is the failure-propagation weight for the dependency type
func (d DependencyType) CascadeWeight() float64 {
	switch d {
	case DependencyHard:
		return 1.0
	case DependencySoft:
		return 0.6
	case DependencyOptional:
		return 0.2
	default:
		return 1.0
	}
}

// ServiceNode is a service registered in the dependency graph
type ServiceNode struct {
	Name             string        `json:"name"`
	Status           ServiceStatus `json:"status"`
	FailureCount     int           `json:"failure_count"`
	CriticalityScore float64       `json:"criticality_score"`
	RecoveryPriority int           `json:"recovery_priority"`
	Dependencies     []string      `json:"dependencies"`
	Dependents       []string      `json:"dependents"`
}

// ServiceDependency is a typed directed edge in the dependency graph.
// At most one edge exists per (source, target) pair.
type ServiceDependency struct {
	Source           string         `json:"source"`
	Target           string         `json:"target"`
	Type             DependencyType `json:"type"`
	Weight           float64        `json:"weight"`
	TimeoutThreshold float64        `json:"timeout_threshold,omitempty"`
	FailureThreshold int            `json:"failure_threshold,omitempty"`
	RecoveryOrder    int            `json:"recovery_order,omitempty"`
}

// ImpactAnalysis is the derived cascade assessment for a failed service
type ImpactAnalysis struct {
	FailedService         string   `json:"failed_service"`
	DirectlyAffected      []string `json:"directly_affected"`
	IndirectlyAffected    []string `json:"indirectly_affected"`
	CascadeProbability    float64  `json:"cascade_probability"`
	EstimatedRecoverySecs float64  `json:"estimated_recovery_seconds"`
	RecoveryOrder         []string `json:"recovery_order"`
}

// GraphExport is the read-only graph view served to operators
type GraphExport struct {
	Nodes []ServiceNode       `json:"nodes"`
	Edges []ServiceDependency `json:"edges"`
	Stats GraphStats          `json:"stats"`
}

// GraphStats summarizes the exported graph
type GraphStats struct {
	ServiceCount    int `json:"service_count"`
	DependencyCount int `json:"dependency_count"`
	UnhealthyCount  int `json:"unhealthy_count"`
}
