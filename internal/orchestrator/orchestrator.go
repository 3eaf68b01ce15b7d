// Package orchestrator turns fault signals into dependency-ordered recovery
// plans and executes them with bounded concurrency, per-action retry and
// timeout, and adaptive per-type success tracking.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/observability"
	"golang.org/x/sync/semaphore"
)

// Config tunes plan execution
type Config struct {
	MaxConcurrentActions int64
	SuccessThreshold     float64
	HistorySize          int
	SweepInterval        time.Duration
	BackoffBase          time.Duration
	EMAAlpha             float64
	EscalationThreshold  float64
}

// DefaultConfig returns the orchestrator defaults
func DefaultConfig() Config {
	return Config{
		MaxConcurrentActions: 5,
		SuccessThreshold:     0.7,
		HistorySize:          100,
		SweepInterval:        10 * time.Second,
		BackoffBase:          time.Second,
		EMAAlpha:             0.1,
		EscalationThreshold:  0.7,
	}
}

// PlanStore persists finished plans. Implementations live outside the core;
// a nil store keeps history in memory only.
type PlanStore interface {
	SavePlan(ctx context.Context, plan *domain.RecoveryPlan) error
}

// Orchestrator owns the active plan set, the bounded action worker pool,
// and the per-action-type success rates
type Orchestrator struct {
	cfg      Config
	registry *HandlerRegistry
	metrics  *observability.Metrics
	store    PlanStore
	sem      *semaphore.Weighted
	now      func() time.Time

	mu          sync.Mutex
	active      map[string]*domain.RecoveryPlan
	history     []*domain.RecoveryPlan
	typeSuccess map[domain.RecoveryActionType]float64

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an orchestrator. store may be nil.
func New(cfg Config, registry *HandlerRegistry, metrics *observability.Metrics, store PlanStore) *Orchestrator {
	if cfg.MaxConcurrentActions <= 0 {
		cfg.MaxConcurrentActions = DefaultConfig().MaxConcurrentActions
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	return &Orchestrator{
		cfg:         cfg,
		registry:    registry,
		metrics:     metrics,
		store:       store,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrentActions),
		now:         time.Now,
		active:      make(map[string]*domain.RecoveryPlan),
		typeSuccess: make(map[domain.RecoveryActionType]float64),
	}
}

// Start launches the background sweep that force-fails plans stuck past
// twice their estimated duration. Idempotent.
func (o *Orchestrator) Start(ctx context.Context) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.running {
		return
	}
	o.running = true

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})

	go o.sweepLoop(ctx)
	log.Printf("Orchestrator started (sweep interval %v)", o.cfg.SweepInterval)
}

// Stop cancels the sweep loop and waits for it to exit
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if !o.running {
		return
	}
	o.running = false
	o.cancel()
	<-o.done
	log.Printf("Orchestrator stopped")
}

// Active reports whether the sweep loop is running
func (o *Orchestrator) Active() bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.running
}

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	defer close(o.done)

	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepStalePlans()
		}
	}
}

// sweepStalePlans force-fails active plans past twice their estimate
func (o *Orchestrator) sweepStalePlans() {
	now := o.now().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()

	for id, plan := range o.active {
		deadline := plan.CreatedAt.Add(2 * plan.EstimatedDuration)
		if !now.After(deadline) {
			continue
		}
		log.Printf("Plan %s exceeded 2x estimated duration, forcing failure: %v", id, domain.ErrPlanTimeout)
		plan.Status = domain.PlanFailed
		completed := now
		plan.CompletedAt = &completed
		plan.ActualDuration = now.Sub(plan.CreatedAt)
		o.retireLocked(plan)
		o.metrics.RecordPlanEnd(string(plan.FaultType), string(plan.Status), plan.ActualDuration.Seconds())
	}
}

// retireLocked moves a plan from the active set to the bounded history
// ring. Caller holds o.mu.
func (o *Orchestrator) retireLocked(plan *domain.RecoveryPlan) {
	delete(o.active, plan.ID)
	o.history = append(o.history, plan)
	if len(o.history) > o.cfg.HistorySize {
		o.history = o.history[len(o.history)-o.cfg.HistorySize:]
	}
}

// stillActive reports whether the plan has not been retired
func (o *Orchestrator) stillActive(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[id]
	return ok
}

// ActiveCount returns the number of plans currently executing
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// ActivePlans returns snapshots of the currently executing plans
func (o *Orchestrator) ActivePlans() []*domain.RecoveryPlan {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*domain.RecoveryPlan, 0, len(o.active))
	for _, plan := range o.active {
		out = append(out, clonePlan(plan))
	}
	return out
}

// History returns snapshots of retired plans, oldest first
func (o *Orchestrator) History() []*domain.RecoveryPlan {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*domain.RecoveryPlan, 0, len(o.history))
	for _, plan := range o.history {
		out = append(out, clonePlan(plan))
	}
	return out
}

// Plan looks up one plan by ID across the active set and history
func (o *Orchestrator) Plan(id string) (*domain.RecoveryPlan, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if plan, ok := o.active[id]; ok {
		return clonePlan(plan), nil
	}
	for _, plan := range o.history {
		if plan.ID == id {
			return clonePlan(plan), nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

// TypeSuccessRates returns the per-action-type EMA success rates
func (o *Orchestrator) TypeSuccessRates() map[domain.RecoveryActionType]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[domain.RecoveryActionType]float64, len(o.typeSuccess))
	for t, rate := range o.typeSuccess {
		out[t] = rate
	}
	return out
}

// recordTypeOutcome folds one action outcome into the EMA for its type
func (o *Orchestrator) recordTypeOutcome(t domain.RecoveryActionType, success bool) {
	x := 0.0
	if success {
		x = 1.0
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	prev, seen := o.typeSuccess[t]
	if !seen {
		o.typeSuccess[t] = x
		return
	}
	o.typeSuccess[t] = o.cfg.EMAAlpha*x + (1-o.cfg.EMAAlpha)*prev
}

func clonePlan(plan *domain.RecoveryPlan) *domain.RecoveryPlan {
	cp := *plan
	cp.Actions = make([]*domain.RecoveryAction, len(plan.Actions))
	for i, a := range plan.Actions {
		ac := *a
		cp.Actions[i] = &ac
	}
	return &cp
}
