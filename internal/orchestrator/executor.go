package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/meshguard/backend-go/internal/domain"
)

// errHandlerFailed marks a handler that ran but reported failure
var errHandlerFailed = errors.New("handler reported failure")

// ExecutePlan runs the plan's actions in dependency-resolved batches and
// reports whether the plan met the success threshold. Failures are isolated
// per action; a failed action only prevents its own dependents, which are
// marked skipped.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan *domain.RecoveryPlan) (bool, error) {
	start := o.now().UTC()

	o.mu.Lock()
	plan.Status = domain.PlanInProgress
	o.active[plan.ID] = plan
	o.mu.Unlock()
	o.metrics.RecordPlanStart()

	log.Printf("Executing plan %s for fault %s (%d actions, priority %d)",
		plan.ID, plan.FaultID, len(plan.Actions), plan.Priority)

	for {
		// Stop launching batches if the sweep retired this plan
		if !o.stillActive(plan.ID) {
			return false, domain.ErrPlanTimeout
		}

		batch := o.nextBatch(plan)
		if len(batch) == 0 {
			if o.skipBlocked(plan) > 0 {
				continue
			}
			break
		}

		var wg sync.WaitGroup
		for _, action := range batch {
			wg.Add(1)
			go func(a *domain.RecoveryAction) {
				defer wg.Done()
				o.executeAction(ctx, a)
			}(action)
		}
		wg.Wait()
	}

	return o.finalizePlan(ctx, plan, start)
}

// nextBatch collects pending actions whose dependencies have all completed
func (o *Orchestrator) nextBatch(plan *domain.RecoveryPlan) []*domain.RecoveryAction {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := make(map[string]domain.ActionStatus, len(plan.Actions))
	for _, a := range plan.Actions {
		status[a.ID] = a.Status
	}

	var batch []*domain.RecoveryAction
	for _, a := range plan.Actions {
		if a.Status != domain.ActionPending {
			continue
		}
		ready := true
		for _, dep := range a.DependsOn {
			if status[dep] != domain.ActionCompleted {
				ready = false
				break
			}
		}
		if ready {
			batch = append(batch, a)
		}
	}
	return batch
}

// skipBlocked marks pending actions whose dependencies terminally failed
// or were skipped, returning how many were marked
func (o *Orchestrator) skipBlocked(plan *domain.RecoveryPlan) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := make(map[string]domain.ActionStatus, len(plan.Actions))
	for _, a := range plan.Actions {
		status[a.ID] = a.Status
	}

	skipped := 0
	for _, a := range plan.Actions {
		if a.Status != domain.ActionPending {
			continue
		}
		for _, dep := range a.DependsOn {
			if status[dep] == domain.ActionFailed || status[dep] == domain.ActionSkipped {
				a.Status = domain.ActionSkipped
				a.Error = fmt.Sprintf("dependency %s did not complete", dep)
				skipped++
				o.metrics.RecordAction(string(a.Type), string(a.Status))
				break
			}
		}
	}
	return skipped
}

// executeAction runs one action under the global semaphore with per-attempt
// timeout and exponential backoff between retries
func (o *Orchestrator) executeAction(ctx context.Context, action *domain.RecoveryAction) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.finishAction(action, false, err)
		return
	}
	defer o.sem.Release(1)

	o.mu.Lock()
	started := o.now().UTC()
	action.StartedAt = &started
	action.Status = domain.ActionInProgress
	o.mu.Unlock()

	handler, ok := o.registry.Get(action.Type)
	if !ok {
		// Configuration error: never retried
		o.finishAction(action, false, fmt.Errorf("%w: %s", domain.ErrHandlerMissing, action.Type))
		return
	}

	for attempt := 0; ; attempt++ {
		success, err := o.invoke(ctx, handler, action)
		if success && err == nil {
			o.finishAction(action, true, nil)
			return
		}
		if err == nil {
			err = errHandlerFailed
		}

		if attempt >= action.MaxRetries {
			o.finishAction(action, false, err)
			return
		}

		o.mu.Lock()
		action.RetryCount++
		o.mu.Unlock()
		o.metrics.RecordActionRetry(string(action.Type))
		log.Printf("Action %s (%s) attempt %d failed: %v, retrying",
			action.ID, action.Type, attempt+1, err)

		backoff := o.cfg.BackoffBase * time.Duration(1<<attempt)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			o.finishAction(action, false, ctx.Err())
			return
		case <-timer.C:
		}
	}
}

// invoke runs the handler under the action's own timeout. A timeout is a
// retryable failure.
func (o *Orchestrator) invoke(ctx context.Context, handler domain.ActionHandler, action *domain.RecoveryAction) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, action.Timeout)
	defer cancel()

	type outcome struct {
		success bool
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		success, err := handler.Execute(ctx, action)
		done <- outcome{success, err}
	}()

	select {
	case r := <-done:
		return r.success, r.err
	case <-ctx.Done():
		return false, domain.ErrActionTimeout
	}
}

// finishAction records an action's terminal state and folds it into the
// per-type success EMA
func (o *Orchestrator) finishAction(action *domain.RecoveryAction, success bool, err error) {
	o.mu.Lock()
	completed := o.now().UTC()
	action.CompletedAt = &completed
	if success {
		action.Status = domain.ActionCompleted
	} else {
		action.Status = domain.ActionFailed
		if err != nil {
			action.Error = err.Error()
		}
	}
	status := action.Status
	o.mu.Unlock()

	o.recordTypeOutcome(action.Type, success)
	o.metrics.RecordAction(string(action.Type), string(status))
}

// finalizePlan computes the success rate, retires the plan, and persists it
func (o *Orchestrator) finalizePlan(ctx context.Context, plan *domain.RecoveryPlan, start time.Time) (bool, error) {
	now := o.now().UTC()

	o.mu.Lock()
	if _, ok := o.active[plan.ID]; !ok {
		// Swept while executing; the sweep already finalized it
		o.mu.Unlock()
		return false, domain.ErrPlanTimeout
	}

	completed := 0
	for _, a := range plan.Actions {
		if a.Status == domain.ActionCompleted {
			completed++
		}
	}
	plan.SuccessRate = 0
	if len(plan.Actions) > 0 {
		plan.SuccessRate = float64(completed) / float64(len(plan.Actions))
	}
	if plan.SuccessRate >= o.cfg.SuccessThreshold {
		plan.Status = domain.PlanCompleted
	} else {
		plan.Status = domain.PlanFailed
	}
	plan.ActualDuration = now.Sub(start)
	plan.CompletedAt = &now
	o.retireLocked(plan)
	status := plan.Status
	rate := plan.SuccessRate
	o.mu.Unlock()

	o.metrics.RecordPlanEnd(string(plan.FaultType), string(status), plan.ActualDuration.Seconds())
	log.Printf("Plan %s finished: %s (success rate %.2f)", plan.ID, status, rate)

	o.persist(ctx, plan)
	return status == domain.PlanCompleted, nil
}

// persist saves a finished plan; persistence failures are logged, never fatal
func (o *Orchestrator) persist(ctx context.Context, plan *domain.RecoveryPlan) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.SavePlan(ctx, clonePlan(plan)); err != nil {
		log.Printf("Failed to persist plan %s: %v", plan.ID, err)
	}
}
