package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metric instruments
type Metrics struct {
	FaultsTotal         *prometheus.CounterVec
	PlansTotal          *prometheus.CounterVec
	PlanDurationSeconds prometheus.Histogram
	ActivePlans         prometheus.Gauge
	ActionsTotal        *prometheus.CounterVec
	ActionRetriesTotal  *prometheus.CounterVec
	BreakerState        *prometheus.GaugeVec
	RateLimitRejects    *prometheus.CounterVec
	DegradationLevel    *prometheus.GaugeVec
	EscalationsTotal    prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns all metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FaultsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshguard_faults_total",
			Help: "Total fault signals received",
		}, []string{"fault_type", "severity"}),

		PlansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshguard_plans_total",
			Help: "Total recovery plans by terminal status",
		}, []string{"fault_type", "status"}),

		PlanDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshguard_plan_duration_seconds",
			Help:    "Duration of recovery plan execution in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		ActivePlans: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meshguard_active_plans",
			Help: "Number of currently executing recovery plans",
		}),

		ActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshguard_actions_total",
			Help: "Total recovery actions by terminal status",
		}, []string{"action_type", "status"}),

		ActionRetriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshguard_action_retries_total",
			Help: "Total recovery action retry attempts",
		}, []string{"action_type"}),

		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshguard_breaker_state",
			Help: "Circuit breaker state per service (0=closed, 1=half_open, 2=open)",
		}, []string{"service"}),

		RateLimitRejects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshguard_rate_limit_rejects_total",
			Help: "Total requests rejected by the rate limiter",
		}, []string{"service"}),

		DegradationLevel: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshguard_degradation_level",
			Help: "Degradation level per service (0=none .. 4=critical)",
		}, []string{"service"}),

		EscalationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meshguard_escalations_total",
			Help: "Total critical escalations raised by the coordinator",
		}),

		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshguard_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
		}, []string{"method", "path"}),
	}
}

// RecordFault counts an incoming fault signal
func (m *Metrics) RecordFault(faultType, severity string) {
	if m == nil {
		return
	}
	m.FaultsTotal.WithLabelValues(faultType, severity).Inc()
}

// RecordPlanStart increments the active plans gauge
func (m *Metrics) RecordPlanStart() {
	if m == nil {
		return
	}
	m.ActivePlans.Inc()
}

// RecordPlanEnd records plan completion
func (m *Metrics) RecordPlanEnd(faultType, status string, duration float64) {
	if m == nil {
		return
	}
	m.ActivePlans.Dec()
	m.PlansTotal.WithLabelValues(faultType, status).Inc()
	m.PlanDurationSeconds.Observe(duration)
}

// RecordAction records an action reaching a terminal status
func (m *Metrics) RecordAction(actionType, status string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(actionType, status).Inc()
}

// RecordActionRetry counts one retry attempt
func (m *Metrics) RecordActionRetry(actionType string) {
	if m == nil {
		return
	}
	m.ActionRetriesTotal.WithLabelValues(actionType).Inc()
}

// RecordEscalation counts a critical escalation
func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.EscalationsTotal.Inc()
}

// SetBreakerState publishes a breaker's numeric state for one service
func (m *Metrics) SetBreakerState(service string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(service).Set(state)
}

// RecordRateLimitReject counts one rejected acquisition
func (m *Metrics) RecordRateLimitReject(service string) {
	if m == nil {
		return
	}
	m.RateLimitRejects.WithLabelValues(service).Inc()
}

// SetDegradationLevel publishes the degradation level rank for one service
func (m *Metrics) SetDegradationLevel(service string, rank float64) {
	if m == nil {
		return
	}
	m.DegradationLevel.WithLabelValues(service).Set(rank)
}

// RecordHTTPRequest records one served HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}
