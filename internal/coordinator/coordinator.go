// Package coordinator ties the protection primitives, the dependency
// graph, and the recovery orchestrator together: it receives fault
// signals, drives plan execution with a fallback path and escalation,
// and runs the periodic self-healing loop.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/graph"
	"github.com/meshguard/backend-go/internal/guard"
	"github.com/meshguard/backend-go/internal/observability"
	"github.com/meshguard/backend-go/internal/orchestrator"
)

// Config tunes the coordinator
type Config struct {
	MaxActivePlans      int
	TickInterval        time.Duration
	EscalationThreshold float64
	FallbackTimeout     time.Duration
}

// DefaultConfig returns the coordinator defaults
func DefaultConfig() Config {
	return Config{
		MaxActivePlans:      3,
		TickInterval:        30 * time.Second,
		EscalationThreshold: 0.7,
		FallbackTimeout:     60 * time.Second,
	}
}

// Coordinator owns the fault intake path and the self-healing loop
type Coordinator struct {
	cfg      Config
	guards   *guard.Set
	topology *graph.Graph
	orch     *orchestrator.Orchestrator
	notifier Notifier
	metrics  *observability.Metrics
	stop     *EmergencyStop
	now      func() time.Time

	mu        sync.Mutex
	tracked   map[string]domain.FaultSignal
	escalated map[string]bool
	deferred  []domain.FaultSignal

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a coordinator. notifier may be nil, in which case
// notifications go to the process log.
func New(cfg Config, guards *guard.Set, topology *graph.Graph, orch *orchestrator.Orchestrator,
	notifier Notifier, metrics *observability.Metrics, stop *EmergencyStop) *Coordinator {
	if cfg.MaxActivePlans <= 0 {
		cfg.MaxActivePlans = DefaultConfig().MaxActivePlans
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if stop == nil {
		stop = NewEmergencyStop()
	}
	return &Coordinator{
		cfg:       cfg,
		guards:    guards,
		topology:  topology,
		orch:      orch,
		notifier:  notifier,
		metrics:   metrics,
		stop:      stop,
		now:       time.Now,
		tracked:   make(map[string]domain.FaultSignal),
		escalated: make(map[string]bool),
	}
}

// EmergencyStop exposes the kill switch
func (c *Coordinator) EmergencyStop() *EmergencyStop {
	return c.stop
}

// OnFault is the intake path for fault signals. It marks the service
// unhealthy, builds and executes a recovery plan, and falls back to a
// manual restart when the plan fails. Faults arriving while the active
// plan cap is reached are deferred and returned with ErrTooManyPlans;
// the monitor loop drains them as capacity frees.
func (c *Coordinator) OnFault(ctx context.Context, fault domain.FaultSignal) (*domain.RecoveryPlan, error) {
	if err := c.stop.Check(); err != nil {
		return nil, err
	}
	if err := c.guards.Allow(fault.Service); err != nil {
		log.Printf("Fault intake for %s rejected: %v", fault.Service, err)
		return nil, err
	}

	if fault.ID == "" {
		fault.ID = uuid.New().String()[:8]
	}
	if fault.DetectedAt.IsZero() {
		fault.DetectedAt = c.now().UTC()
	}
	c.metrics.RecordFault(string(fault.Type), string(fault.Severity))
	log.Printf("Fault %s: %s on %s (severity %s)", fault.ID, fault.Type, fault.Service, fault.Severity)

	c.topology.AddService(fault.Service)
	c.topology.SetStatus(fault.Service, domain.StatusUnhealthy)

	if c.orch.ActiveCount() >= c.cfg.MaxActivePlans {
		c.mu.Lock()
		c.deferred = append(c.deferred, fault)
		queued := len(c.deferred)
		c.mu.Unlock()
		log.Printf("Active plan cap reached, deferring fault %s (%d queued)", fault.ID, queued)
		return nil, fmt.Errorf("%w: fault %s deferred", domain.ErrTooManyPlans, fault.ID)
	}

	return c.handleFault(ctx, fault)
}

// handleFault runs the plan/fallback/escalate sequence for one fault
func (c *Coordinator) handleFault(ctx context.Context, fault domain.FaultSignal) (*domain.RecoveryPlan, error) {
	var impactPtr *domain.ImpactAnalysis
	if impact, err := c.topology.Analyze(fault.Service, "failure"); err == nil {
		impactPtr = &impact
	}

	plan := c.orch.BuildPlan(fault, impactPtr)

	c.mu.Lock()
	c.tracked[fault.ID] = fault
	c.mu.Unlock()

	ok, err := c.orch.ExecutePlan(ctx, plan)
	if err != nil {
		log.Printf("Plan %s for fault %s aborted: %v", plan.ID, fault.ID, err)
	}
	if ok {
		c.resolve(ctx, fault, plan.ID, "recovery plan completed")
		return plan, nil
	}

	_ = c.notifier.Notify(ctx, Notification{
		Level:   NotifyWarning,
		Title:   "Recovery plan failed",
		Message: fmt.Sprintf("plan %s for fault %s failed, attempting manual fallback", plan.ID, fault.ID),
		Service: fault.Service,
		At:      c.now().UTC(),
	})

	if c.manualRecovery(ctx, fault) {
		c.resolve(ctx, fault, plan.ID, "manual fallback succeeded")
		return plan, nil
	}

	c.escalate(ctx, fault, fmt.Sprintf("plan %s and manual fallback both failed", plan.ID))
	return plan, nil
}

// manualRecovery is the last-resort path: a single restart action run
// through the orchestrator so it gets the usual timeout and retry handling
func (c *Coordinator) manualRecovery(ctx context.Context, fault domain.FaultSignal) bool {
	plan := &domain.RecoveryPlan{
		ID:        "manual-" + uuid.New().String()[:8],
		FaultID:   fault.ID,
		Service:   fault.Service,
		FaultType: fault.Type,
		Priority:  1,
		Status:    domain.PlanPending,
		CreatedAt: c.now().UTC(),
		Actions: []*domain.RecoveryAction{{
			ID:            uuid.New().String()[:8],
			Type:          domain.ActionServiceRestart,
			TargetService: fault.Service,
			Parameters:    map[string]string{"mode": "manual_fallback"},
			Timeout:       c.cfg.FallbackTimeout,
			MaxRetries:    1,
			Status:        domain.ActionPending,
		}},
		EstimatedDuration: c.cfg.FallbackTimeout,
	}

	ok, err := c.orch.ExecutePlan(ctx, plan)
	if err != nil {
		log.Printf("Manual fallback for fault %s aborted: %v", fault.ID, err)
	}
	return ok
}

// resolve marks the service healthy again and stops tracking the fault
func (c *Coordinator) resolve(ctx context.Context, fault domain.FaultSignal, planID, how string) {
	c.topology.SetStatus(fault.Service, domain.StatusHealthy)

	c.mu.Lock()
	delete(c.tracked, fault.ID)
	delete(c.escalated, fault.ID)
	c.mu.Unlock()

	log.Printf("Fault %s on %s resolved: %s", fault.ID, fault.Service, how)
	_ = c.notifier.Notify(ctx, Notification{
		Level:   NotifyInfo,
		Title:   "Service recovered",
		Message: fmt.Sprintf("fault %s resolved: %s", fault.ID, how),
		Service: fault.Service,
		At:      c.now().UTC(),
		Details: map[string]any{"plan_id": planID},
	})
}

// escalate raises a critical notification once per fault
func (c *Coordinator) escalate(ctx context.Context, fault domain.FaultSignal, reason string) {
	c.mu.Lock()
	if c.escalated[fault.ID] {
		c.mu.Unlock()
		return
	}
	c.escalated[fault.ID] = true
	c.mu.Unlock()

	c.metrics.RecordEscalation()
	log.Printf("ESCALATION for fault %s on %s: %s", fault.ID, fault.Service, reason)

	// Escalations must reach the sink; retry transient notifier failures
	note := Notification{
		Level:   NotifyCritical,
		Title:   "Recovery escalation",
		Message: reason,
		Service: fault.Service,
		At:      c.now().UTC(),
		Details: map[string]any{"fault_id": fault.ID, "fault_type": string(fault.Type)},
	}
	err := c.guards.Retry.Execute(ctx, func(ctx context.Context) error {
		return c.notifier.Notify(ctx, note)
	})
	if err != nil {
		log.Printf("Escalation notification for fault %s undelivered: %v", fault.ID, err)
	}
}

// ApplyHealthSnapshot folds a collaborator health report into the service's
// degradation manager and topology status. Returns the degradation level.
func (c *Coordinator) ApplyHealthSnapshot(snapshot domain.HealthSnapshot) domain.DegradationLevel {
	scores := make(map[string]float64, len(snapshot.Metrics))
	sum := 0.0
	for name, state := range snapshot.Metrics {
		s := state.Score()
		scores[name] = s
		sum += s
	}

	level := c.guards.Degraders.Get(snapshot.Service).Evaluate(scores)
	c.metrics.SetDegradationLevel(snapshot.Service, float64(level.Rank()))

	mean := 1.0
	if len(scores) > 0 {
		mean = sum / float64(len(scores))
	}
	status := domain.StatusHealthy
	switch {
	case mean < 0.4:
		status = domain.StatusUnhealthy
	case mean < 0.8:
		status = domain.StatusDegraded
	}
	c.topology.AddService(snapshot.Service)
	c.topology.SetStatus(snapshot.Service, status)
	return level
}

// TrackedFaults returns the faults whose recovery is still in flight
func (c *Coordinator) TrackedFaults() []domain.FaultSignal {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.FaultSignal, 0, len(c.tracked))
	for _, f := range c.tracked {
		out = append(out, f)
	}
	return out
}

// DeferredCount returns the number of faults waiting for plan capacity
func (c *Coordinator) DeferredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred)
}

// Start launches the periodic self-healing loop. Idempotent.
func (c *Coordinator) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}
	c.running = true

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.monitorLoop(ctx)
	log.Printf("Coordinator started (tick interval %v)", c.cfg.TickInterval)
}

// Stop cancels the monitor loop and waits for it to exit
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	<-c.done
	log.Printf("Coordinator stopped")
}

// Active reports whether the monitor loop is running
func (c *Coordinator) Active() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.running
}

func (c *Coordinator) monitorLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one self-healing pass: restart stopped subsystems, re-check
// the blast radius of in-flight faults, and drain the deferred queue
func (c *Coordinator) tick(ctx context.Context) {
	if !c.orch.Active() {
		log.Printf("Orchestrator sweep inactive, restarting")
		c.orch.Start(ctx)
	}

	if c.stop.IsTriggered() {
		return
	}

	c.reassessTracked(ctx)
	c.drainDeferred(ctx)
}

// reassessTracked escalates in-flight faults whose cascade probability
// has grown past the threshold since intake
func (c *Coordinator) reassessTracked(ctx context.Context) {
	c.mu.Lock()
	faults := make([]domain.FaultSignal, 0, len(c.tracked))
	for id, f := range c.tracked {
		if !c.escalated[id] {
			faults = append(faults, f)
		}
	}
	c.mu.Unlock()

	for _, fault := range faults {
		impact, err := c.topology.Analyze(fault.Service, "failure")
		if err != nil {
			continue
		}
		if impact.CascadeProbability > c.cfg.EscalationThreshold {
			c.escalate(ctx, fault, fmt.Sprintf(
				"cascade probability %.2f exceeds %.2f with recovery still in flight",
				impact.CascadeProbability, c.cfg.EscalationThreshold))
		}
	}
}

// drainDeferred starts recovery for one queued fault if capacity freed.
// One per tick keeps the cap honest while plans are still ramping up.
func (c *Coordinator) drainDeferred(ctx context.Context) {
	if c.orch.ActiveCount() >= c.cfg.MaxActivePlans {
		return
	}

	c.mu.Lock()
	if len(c.deferred) == 0 {
		c.mu.Unlock()
		return
	}
	fault := c.deferred[0]
	c.deferred = c.deferred[1:]
	c.mu.Unlock()

	log.Printf("Dequeuing deferred fault %s for %s", fault.ID, fault.Service)
	go func() {
		if _, err := c.handleFault(ctx, fault); err != nil {
			log.Printf("Deferred fault %s failed: %v", fault.ID, err)
		}
	}()
}
