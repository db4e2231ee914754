package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// stepResult is reported by a worker when an attempt ends.
type stepResult struct {
	stepID   string
	output   json.RawMessage
	err      error
	deferred bool
	fatal    bool
}

// runLoop schedules the steps of one execution. Only the loop goroutine
// touches its own fields; execution state is shared under ex.mu.
type runLoop struct {
	e  *Engine
	ex *execution

	// acquireCtx bounds resource waits and ends when the run stops.
	acquireCtx context.Context
	writeCtx   context.Context

	results   chan stepResult
	launched  map[string]bool
	retrying  map[string]bool
	notBefore map[string]time.Time

	sinceCheckpoint int
	stopping        bool
}

func newRunLoop(e *Engine, ex *execution) *runLoop {
	return &runLoop{
		e:         e,
		ex:        ex,
		results:   make(chan stepResult, e.cfg.Workers),
		launched:  make(map[string]bool),
		retrying:  make(map[string]bool),
		notBefore: make(map[string]time.Time),
	}
}

func (l *runLoop) run(ctx context.Context) {
	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.acquireCtx = acquireCtx
	l.writeCtx = context.WithoutCancel(ctx)

	var tick <-chan time.Time
	if l.e.cfg.CheckpointInterval > 0 {
		ticker := time.NewTicker(l.e.cfg.CheckpointInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	var budget <-chan time.Time
	if l.e.cfg.WallClockBudget > 0 {
		timer := time.NewTimer(l.e.cfg.WallClockBudget)
		defer timer.Stop()
		budget = timer.C
	}

	l.ex.mu.Lock()
	stop := l.ex.stop
	l.ex.mu.Unlock()
	cancelled := ctx.Done()

	wakeTimer := time.NewTimer(time.Hour)
	wakeTimer.Stop()
	defer wakeTimer.Stop()

	inflight := 0
	for {
		if !l.stopping && l.stopRequested(ctx) {
			l.beginStop(cancel, "stop requested")
		}
		if !l.stopping {
			inflight += l.launchReady(l.e.cfg.Workers - inflight)
		}
		if inflight == 0 {
			if l.stopping || l.allTerminal() {
				return
			}
			if len(l.notBefore) == 0 {
				logger.Warn("execution %s has no runnable steps", l.ex.state.ExecutionID)
				return
			}
		}

		var wake <-chan time.Time
		if !l.stopping {
			if d, ok := l.nextWake(); ok {
				wakeTimer.Reset(d)
				wake = wakeTimer.C
			}
		}

		select {
		case r := <-l.results:
			inflight--
			l.handle(r)
		case <-cancelled:
			cancelled = nil
			l.beginStop(cancel, "cancelled")
		case <-stop:
			stop = nil
			l.beginStop(cancel, "pause requested")
		case <-budget:
			budget = nil
			l.ex.record(domain.Event{
				Kind:    domain.EventBudgetExceeded,
				Message: fmt.Sprintf("wall-clock budget of %s exceeded", l.e.cfg.WallClockBudget),
			})
			l.beginStop(cancel, "budget exceeded")
		case <-tick:
			_, _ = l.e.cp.write(l.writeCtx, l.ex)
		case <-wake:
		}
		wakeTimer.Stop()
	}
}

func (l *runLoop) beginStop(cancel context.CancelFunc, reason string) {
	if l.stopping {
		return
	}
	l.stopping = true
	cancel()
	logger.Debug("Stopping execution %s: %s", l.ex.state.ExecutionID, reason)
}

// stopRequested reports a cancelled context or a pending Pause.
func (l *runLoop) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	l.ex.mu.Lock()
	defer l.ex.mu.Unlock()
	return l.ex.stopping
}

// nextWake returns the time until the earliest delayed step is due.
func (l *runLoop) nextWake() (time.Duration, bool) {
	var earliest time.Time
	for _, t := range l.notBefore {
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if earliest.IsZero() {
		return 0, false
	}
	return max(time.Until(earliest), 0), true
}

func (l *runLoop) allTerminal() bool {
	l.ex.mu.Lock()
	defer l.ex.mu.Unlock()
	return l.allTerminalLocked()
}

func (l *runLoop) allTerminalLocked() bool {
	for _, st := range l.ex.state.Steps {
		if st.Status != domain.StepCompleted && st.Status != domain.StepFailed {
			return false
		}
	}
	return true
}

// launchReady starts up to slots ready steps in plan order.
func (l *runLoop) launchReady(slots int) int {
	if slots <= 0 {
		return 0
	}
	now := time.Now()

	l.ex.mu.Lock()
	defer l.ex.mu.Unlock()

	started := 0
	for _, step := range l.ex.state.Plan.Steps {
		if started == slots {
			break
		}
		if !l.readyLocked(step.ID, now) {
			continue
		}

		inputs := make(map[string]json.RawMessage)
		for _, pre := range l.ex.state.Plan.Prerequisites(step.ID) {
			inputs[pre] = l.ex.state.Steps[pre].Output
		}
		l.launched[step.ID] = true
		delete(l.notBefore, step.ID)
		go func() {
			l.results <- l.attempt(step, inputs)
		}()
		started++
	}
	return started
}

func (l *runLoop) readyLocked(id string, now time.Time) bool {
	if l.launched[id] {
		return false
	}
	if t, ok := l.notBefore[id]; ok && now.Before(t) {
		return false
	}
	if l.retrying[id] {
		return true
	}
	if l.ex.state.Steps[id].Status != domain.StepPending {
		return false
	}
	for _, pre := range l.ex.state.Plan.Prerequisites(id) {
		if l.ex.state.Steps[pre].Status != domain.StepCompleted {
			return false
		}
	}
	return true
}

// attempt acquires resources and runs one attempt of a step.
// The handler runs to completion even if the execution is stopped.
func (l *runLoop) attempt(step domain.ProcessStep, inputs map[string]json.RawMessage) (res stepResult) {
	res.stepID = step.ID

	if req := l.e.requirements(step); !req.IsZero() {
		alloc, err := l.e.resources.Acquire(l.acquireCtx, req)
		if err != nil {
			res.err = err
			res.fatal = errors.Is(err, domain.ErrValidation)
			res.deferred = !res.fatal
			return res
		}
		defer alloc.Release()
	}

	l.ex.mu.Lock()
	st := l.ex.state.Steps[step.ID]
	st.Status = domain.StepRunning
	st.Attempts++
	if st.StartedAt.IsZero() {
		st.StartedAt = time.Now()
	}
	handler := l.ex.handlers[step.ID]
	executionID := l.ex.state.ExecutionID
	l.ex.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			res.output = nil
			res.err = fmt.Errorf("%w: step %s panicked: %v", domain.ErrStepExecution, step.ID, r)
		}
	}()

	out, err := handler.Run(context.WithoutCancel(l.acquireCtx), &driven.StepInput{
		ExecutionID: executionID,
		Step:        step,
		Inputs:      inputs,
		Events:      stepEvents{ex: l.ex, stepID: step.ID},
	})
	if err != nil {
		res.err = err
		return res
	}

	data, err := json.Marshal(out)
	if err != nil {
		res.err = fmt.Errorf("%w: encode output of step %s: %v", domain.ErrStepExecution, step.ID, err)
		res.fatal = true
		return res
	}
	res.output = data
	return res
}

// handle applies a finished attempt to the execution state.
func (l *runLoop) handle(r stepResult) {
	delete(l.launched, r.stepID)
	now := time.Now()
	checkpoint := false

	l.ex.mu.Lock()
	st := l.ex.state.Steps[r.stepID]
	step, _ := l.ex.state.Plan.Step(r.stepID)

	switch {
	case r.deferred:
		l.notBefore[r.stepID] = now.Add(l.e.cfg.DeferDelay)
		if l.stopping {
			break
		}
		l.ex.recordLocked(domain.Event{
			Kind:    domain.EventStepDeferred,
			StepID:  r.stepID,
			Message: r.err.Error(),
			At:      now,
		})
		logger.Debug("Step %s deferred: %v", r.stepID, r.err)

	case r.err == nil:
		st.Status = domain.StepCompleted
		st.Output = r.output
		st.Error = ""
		st.EndedAt = now
		delete(l.retrying, r.stepID)
		l.sinceCheckpoint++
		if n := l.e.cfg.CheckpointEverySteps; n > 0 && l.sinceCheckpoint >= n {
			l.sinceCheckpoint = 0
			checkpoint = true
		}
		logger.Debug("Step %s completed after %d attempt(s)", r.stepID, st.Attempts)

	case !r.fatal && st.Attempts <= l.e.maxRetries(step):
		delay := l.e.backoff(st.Attempts)
		l.retrying[r.stepID] = true
		l.notBefore[r.stepID] = now.Add(delay)
		l.ex.recordLocked(domain.Event{
			Kind:    domain.EventStepRetry,
			StepID:  r.stepID,
			Message: fmt.Sprintf("attempt %d failed, retrying in %s: %v", st.Attempts, delay, r.err),
			At:      now,
		})
		logger.Debug("Step %s attempt %d failed, retrying in %s: %v", r.stepID, st.Attempts, delay, r.err)

	default:
		delete(l.retrying, r.stepID)
		err := r.err
		if !errors.Is(err, domain.ErrStepExecution) && !errors.Is(err, domain.ErrValidation) {
			err = fmt.Errorf("%w: %w", domain.ErrStepExecution, err)
		}
		l.failLocked(r.stepID, err.Error(), now)
		logger.Warn("step %s failed after %d attempt(s): %v", r.stepID, st.Attempts, r.err)
		l.failDependentsLocked(r.stepID, now)
	}
	l.ex.mu.Unlock()

	if checkpoint {
		_, _ = l.e.cp.write(l.writeCtx, l.ex)
	}
}

func (l *runLoop) failLocked(id, reason string, now time.Time) {
	st := l.ex.state.Steps[id]
	st.Status = domain.StepFailed
	st.Error = reason
	st.EndedAt = now
	l.ex.recordLocked(domain.Event{Kind: domain.EventStepFailed, StepID: id, Message: reason, At: now})
}

// failDependentsLocked marks every transitive dependent of id Failed.
func (l *runLoop) failDependentsLocked(id string, now time.Time) {
	queue := l.ex.state.Plan.Dependents(id)
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if l.ex.state.Steps[dep].Status == domain.StepFailed {
			continue
		}
		l.failLocked(dep, "dependency failed: "+id, now)
		delete(l.notBefore, dep)
		queue = append(queue, l.ex.state.Plan.Dependents(dep)...)
	}
}
