package mcp

import (
	"context"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	resp  *domain.SearchResponse
	err   error
	query domain.Query
}

func (m *mockSearchService) Search(_ context.Context, q domain.Query) (*domain.SearchResponse, error) {
	m.query = q
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.SearchResponse{}, nil
	}
	return m.resp, nil
}

// mockEngine is a mock implementation of driving.ExecutionEngine.
type mockEngine struct {
	mu       sync.Mutex
	states   map[string]*domain.ExecutionState
	result   *domain.RunResult
	err      error
	runs     []string
	runDone  chan struct{}
	initPlan domain.ProcessingPlan
}

var _ driving.ExecutionEngine = (*mockEngine)(nil)

func newMockEngine(states ...*domain.ExecutionState) *mockEngine {
	m := &mockEngine{states: make(map[string]*domain.ExecutionState), runDone: make(chan struct{}, 8)}
	for _, s := range states {
		m.states[s.ExecutionID] = s
	}
	return m
}

func (m *mockEngine) Initialize(_ context.Context, plan domain.ProcessingPlan) (*domain.ExecutionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.initPlan = plan
	st := &domain.ExecutionState{ExecutionID: "exec-new", PlanID: plan.ID, Plan: plan, Status: domain.ExecutionPending}
	m.states[st.ExecutionID] = st
	return st, nil
}

func (m *mockEngine) Run(_ context.Context, id string) (*domain.RunResult, error) {
	m.mu.Lock()
	m.runs = append(m.runs, id)
	res, err := m.result, m.err
	m.mu.Unlock()
	m.runDone <- struct{}{}
	return res, err
}

func (m *mockEngine) Pause(context.Context, string) error { return nil }

func (m *mockEngine) Resume(context.Context, string) (*domain.RunResult, error) {
	return m.result, m.err
}

func (m *mockEngine) ResumeLatest(context.Context, string) (*domain.RunResult, error) {
	return m.result, m.err
}

func (m *mockEngine) Status(_ context.Context, id string) (*domain.ExecutionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (m *mockEngine) List(context.Context) ([]domain.ExecutionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.ExecutionState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, *st)
	}
	return out, nil
}

func (m *mockEngine) Checkpoints(context.Context, string) ([]domain.Checkpoint, error) {
	return nil, m.err
}

func (m *mockEngine) Delete(context.Context, string) error { return m.err }

func testExecution() *domain.ExecutionState {
	plan := domain.LinearPlan("ingest-docs",
		domain.ProcessStep{ID: "chunk", Kind: "chunk"},
		domain.ProcessStep{ID: "embed", Kind: "embed"},
	)
	return &domain.ExecutionState{
		ExecutionID:      "exec-1",
		PlanID:           plan.ID,
		Plan:             plan,
		Status:           domain.ExecutionPaused,
		LastCheckpointID: "cp-3",
		Steps: map[string]*domain.StepState{
			"chunk": {Status: domain.StepCompleted, Attempts: 1},
			"embed": {Status: domain.StepFailed, Attempts: 3, Error: "oracle down"},
		},
	}
}
