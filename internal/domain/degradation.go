package domain

// DegradationLevel is a discrete tier of reduced functionality
type DegradationLevel string

const (
	DegradationNone     DegradationLevel = "none"
	DegradationMinimal  DegradationLevel = "minimal"
	DegradationModerate DegradationLevel = "moderate"
	DegradationSevere   DegradationLevel = "severe"
	DegradationCritical DegradationLevel = "critical"
)

// Rank orders levels by severity; higher means more degraded
func (l DegradationLevel) Rank() int {
	switch l {
	case DegradationMinimal:
		return 1
	case DegradationModerate:
		return 2
	case DegradationSevere:
		return 3
	case DegradationCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether l is as severe as other or more so
func (l DegradationLevel) AtLeast(other DegradationLevel) bool {
	return l.Rank() >= other.Rank()
}
