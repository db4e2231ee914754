package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// Ensure Engine implements the interface.
var _ driving.ExecutionEngine = (*Engine)(nil)

// Engine runs processing plans with checkpoint and resume.
type Engine struct {
	cfg       domain.EngineConfig
	resolver  driven.StepHandlerResolver
	store     driven.CheckpointStore
	resources driving.ResourceCoordinator
	cp        *checkpointer

	mu         sync.Mutex
	executions map[string]*execution
}

// NewEngine creates an execution engine.
// The resource coordinator is optional; without it steps are never deferred.
func NewEngine(
	cfg domain.EngineConfig,
	resolver driven.StepHandlerResolver,
	store driven.CheckpointStore,
	resources driving.ResourceCoordinator,
) *Engine {
	def := domain.DefaultEngineConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.CheckpointRetries <= 0 {
		cfg.CheckpointRetries = def.CheckpointRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = max(def.RetryMaxDelay, cfg.RetryBaseDelay)
	}
	if cfg.DeferDelay <= 0 {
		cfg.DeferDelay = def.DeferDelay
	}

	return &Engine{
		cfg:        cfg,
		resolver:   resolver,
		store:      store,
		resources:  resources,
		cp:         &checkpointer{store: store, retries: cfg.CheckpointRetries},
		executions: make(map[string]*execution),
	}
}

// execution is the engine's record of one execution.
type execution struct {
	// mu guards every field below.
	mu       sync.Mutex
	state    *domain.ExecutionState
	handlers map[string]driven.StepHandler
	seq      int64

	// events raised during the current run.
	events []domain.Event

	// stop and done are set while a run loop owns the execution.
	stop     chan struct{}
	stopping bool
	done     chan struct{}
}

func (ex *execution) record(e domain.Event) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.recordLocked(e)
}

func (ex *execution) recordLocked(e domain.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ex.state.Events = append(ex.state.Events, e)
	ex.events = append(ex.events, e)
}

func (ex *execution) result() *domain.RunResult {
	return &domain.RunResult{
		State:  *ex.state.Clone(),
		Events: slices.Clone(ex.events),
	}
}

// stepEvents attributes events raised by a handler to its step.
type stepEvents struct {
	ex     *execution
	stepID string
}

func (s stepEvents) Record(e domain.Event) {
	if e.StepID == "" {
		e.StepID = s.stepID
	}
	s.ex.record(e)
}

// Initialize validates a plan and creates a Pending execution.
func (e *Engine) Initialize(_ context.Context, plan domain.ProcessingPlan) (*domain.ExecutionState, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	handlers, err := e.resolveHandlers(plan)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	state := &domain.ExecutionState{
		ExecutionID: uuid.New().String(),
		PlanID:      plan.ID,
		Plan:        plan,
		Status:      domain.ExecutionPending,
		Steps:       make(map[string]*domain.StepState, len(plan.Steps)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, s := range plan.Steps {
		state.Steps[s.ID] = &domain.StepState{Status: domain.StepPending}
	}

	e.mu.Lock()
	e.executions[state.ExecutionID] = &execution{state: state, handlers: handlers}
	e.mu.Unlock()

	logger.Debug("Initialised execution %s for plan %s (%d steps)", state.ExecutionID, plan.ID, len(plan.Steps))
	return state.Clone(), nil
}

func (e *Engine) resolveHandlers(plan domain.ProcessingPlan) (map[string]driven.StepHandler, error) {
	handlers := make(map[string]driven.StepHandler, len(plan.Steps))
	for _, s := range plan.Steps {
		h, err := e.resolver.Resolve(s)
		if err != nil {
			return nil, fmt.Errorf("%w: step %s: %w", domain.ErrValidation, s.ID, err)
		}
		handlers[s.ID] = h
	}
	return handlers, nil
}

func (e *Engine) get(id string) (*execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ex, ok := e.executions[id]
	if !ok {
		return nil, fmt.Errorf("%w: execution %s", domain.ErrNotFound, id)
	}
	return ex, nil
}

// Run drives an execution until it completes, fails, or is stopped.
func (e *Engine) Run(ctx context.Context, executionID string) (*domain.RunResult, error) {
	ex, err := e.get(executionID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, ex)
}

func (e *Engine) run(ctx context.Context, ex *execution) (*domain.RunResult, error) {
	ex.mu.Lock()
	if ex.done != nil {
		ex.mu.Unlock()
		return nil, fmt.Errorf("%w: execution %s", domain.ErrExecutionActive, ex.state.ExecutionID)
	}
	if ex.state.Status.IsTerminal() {
		res := ex.result()
		ex.mu.Unlock()
		return res, nil
	}
	ex.stop = make(chan struct{})
	ex.stopping = false
	ex.done = make(chan struct{})
	ex.events = nil
	ex.state.Status = domain.ExecutionRunning
	for _, st := range ex.state.Steps {
		if st.Status == domain.StepRunning {
			st.Status = domain.StepPending
		}
	}
	done := ex.done
	ex.mu.Unlock()

	defer func() {
		ex.mu.Lock()
		ex.done = nil
		ex.stop = nil
		ex.mu.Unlock()
		close(done)
	}()

	logger.Section("Execution " + ex.state.ExecutionID)
	loop := newRunLoop(e, ex)
	loop.run(ctx)

	ex.mu.Lock()
	switch {
	case loop.allTerminalLocked():
		ex.state.Status = domain.ExecutionCompleted
		if ex.state.CountSteps(domain.StepFailed) > 0 {
			ex.state.Status = domain.ExecutionFailed
		}
	default:
		ex.state.Status = domain.ExecutionPaused
		for _, st := range ex.state.Steps {
			if st.Status == domain.StepRunning {
				st.Status = domain.StepPending
			}
		}
	}
	ex.state.ResourceUsage = e.usage()
	status := ex.state.Status
	ex.mu.Unlock()

	// A failed final write is already recorded as an event.
	_, _ = e.cp.write(context.WithoutCancel(ctx), ex)

	ex.mu.Lock()
	res := ex.result()
	ex.mu.Unlock()
	logger.Info("Execution %s %s (%d events)", ex.state.ExecutionID, status, len(res.Events))
	return res, nil
}

func (e *Engine) usage() map[domain.ResourceKind]domain.ResourceUsage {
	if e.resources == nil {
		return nil
	}
	return e.resources.Snapshot()
}

// requirements returns what a step holds while it runs. Explicit Requires
// are used as given; built-in defaults are trimmed to the configured pools.
func (e *Engine) requirements(step domain.ProcessStep) domain.Requirements {
	if e.resources == nil {
		return nil
	}
	if step.Requires != nil {
		return step.Requires
	}
	def := domain.DefaultStepRequirements(step)
	if len(def) == 0 {
		return nil
	}
	pools := e.resources.Snapshot()
	out := make(domain.Requirements, len(def))
	for kind, n := range def {
		if u, ok := pools[kind]; ok && u.Capacity > 0 {
			out[kind] = min(n, u.Capacity)
		}
	}
	return out
}

func (e *Engine) maxRetries(step domain.ProcessStep) int {
	if step.MaxRetries != nil {
		return *step.MaxRetries
	}
	return e.cfg.MaxRetries
}

// backoff returns the delay before retry number attempt, starting at 1.
func (e *Engine) backoff(attempt int) time.Duration {
	d := e.cfg.RetryBaseDelay
	for i := 1; i < attempt && d < e.cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	return min(d, e.cfg.RetryMaxDelay)
}

// Pause stops a running execution and waits until it is Paused.
// An execution that is not running is checkpointed and marked Paused.
func (e *Engine) Pause(ctx context.Context, executionID string) error {
	ex, err := e.get(executionID)
	if err != nil {
		return err
	}

	ex.mu.Lock()
	if ex.done == nil {
		switch ex.state.Status {
		case domain.ExecutionCompleted, domain.ExecutionFailed:
			ex.mu.Unlock()
			return fmt.Errorf("%w: execution %s is %s", domain.ErrValidation, executionID, ex.state.Status)
		case domain.ExecutionPaused:
			ex.mu.Unlock()
			return nil
		}
		ex.state.Status = domain.ExecutionPaused
		ex.mu.Unlock()
		_, _ = e.cp.write(context.WithoutCancel(ctx), ex)
		return nil
	}
	if !ex.stopping {
		ex.stopping = true
		close(ex.stop)
	}
	done := ex.done
	ex.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume derives a new state from a checkpoint and runs it. The
// execution keeps its ID; Running steps go back to Pending.
func (e *Engine) Resume(ctx context.Context, checkpointID string) (*domain.RunResult, error) {
	cp, err := e.store.Get(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", checkpointID, err)
	}
	state, err := decodeCheckpoint(cp)
	if err != nil {
		return nil, err
	}
	ex, err := e.restore(ctx, state, cp)
	if err != nil {
		return nil, err
	}
	logger.Debug("Resuming execution %s from checkpoint %s (seq %d)", state.ExecutionID, cp.ID, cp.Sequence)
	return e.run(ctx, ex)
}

// ResumeLatest resumes an execution from its most recent checkpoint.
func (e *Engine) ResumeLatest(ctx context.Context, executionID string) (*domain.RunResult, error) {
	cp, err := e.store.Latest(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("latest checkpoint of %s: %w", executionID, err)
	}
	return e.Resume(ctx, cp.ID)
}

func (e *Engine) restore(ctx context.Context, state *domain.ExecutionState, cp *domain.Checkpoint) (*execution, error) {
	if err := state.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: checkpoint %s: %w", domain.ErrCheckpoint, cp.ID, err)
	}
	handlers, err := e.resolveHandlers(state.Plan)
	if err != nil {
		return nil, err
	}

	seq := cp.Sequence
	if latest, err := e.store.Latest(ctx, state.ExecutionID); err == nil {
		seq = max(seq, latest.Sequence)
	}

	for _, st := range state.Steps {
		if st.Status == domain.StepRunning {
			st.Status = domain.StepPending
		}
	}
	if !state.Status.IsTerminal() {
		state.Status = domain.ExecutionPaused
	}
	state.ResumedFrom = cp.ID
	state.LastCheckpointID = cp.ID

	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.executions[state.ExecutionID]; ok {
		old.mu.Lock()
		active := old.done != nil
		old.mu.Unlock()
		if active {
			return nil, fmt.Errorf("%w: execution %s", domain.ErrExecutionActive, state.ExecutionID)
		}
	}
	ex := &execution{state: state, handlers: handlers, seq: seq}
	e.executions[state.ExecutionID] = ex
	return ex, nil
}

// Status returns a copy of an execution's state.
func (e *Engine) Status(ctx context.Context, executionID string) (*domain.ExecutionState, error) {
	if ex, err := e.get(executionID); err == nil {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		return ex.state.Clone(), nil
	}

	cp, err := e.store.Latest(ctx, executionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: execution %s", domain.ErrNotFound, executionID)
		}
		return nil, err
	}
	return decodeCheckpoint(cp)
}

// List returns every execution held in memory or checkpointed.
func (e *Engine) List(ctx context.Context) ([]domain.ExecutionState, error) {
	e.mu.Lock()
	held := make([]*execution, 0, len(e.executions))
	for _, ex := range e.executions {
		held = append(held, ex)
	}
	e.mu.Unlock()

	seen := make(map[string]bool, len(held))
	out := make([]domain.ExecutionState, 0, len(held))
	for _, ex := range held {
		ex.mu.Lock()
		out = append(out, *ex.state.Clone())
		seen[ex.state.ExecutionID] = true
		ex.mu.Unlock()
	}

	ids, err := e.store.Executions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list checkpointed executions: %w", err)
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		cp, err := e.store.Latest(ctx, id)
		if err != nil {
			return nil, err
		}
		state, err := decodeCheckpoint(cp)
		if err != nil {
			logger.Warn("skipping execution %s: %v", id, err)
			continue
		}
		out = append(out, *state)
	}

	slices.SortFunc(out, func(a, b domain.ExecutionState) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ExecutionID, b.ExecutionID)
	})
	return out, nil
}

// Checkpoints lists an execution's checkpoints, oldest first.
func (e *Engine) Checkpoints(ctx context.Context, executionID string) ([]domain.Checkpoint, error) {
	return e.store.List(ctx, executionID)
}

// Delete forgets a non-running execution and its checkpoints.
func (e *Engine) Delete(ctx context.Context, executionID string) error {
	e.mu.Lock()
	ex, inMemory := e.executions[executionID]
	if inMemory {
		ex.mu.Lock()
		active := ex.done != nil
		ex.mu.Unlock()
		if active {
			e.mu.Unlock()
			return fmt.Errorf("%w: execution %s", domain.ErrExecutionActive, executionID)
		}
		delete(e.executions, executionID)
	}
	e.mu.Unlock()

	if !inMemory {
		list, err := e.store.List(ctx, executionID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return fmt.Errorf("%w: execution %s", domain.ErrNotFound, executionID)
		}
	}
	return e.store.DeleteExecution(ctx, executionID)
}
