package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func parseStub(_ []byte, id string) (domain.ProcessingPlan, error) {
	return domain.LinearPlan(id, domain.ProcessStep{ID: "a", Kind: "chunk"}), nil
}

func newToolServer(t *testing.T, search *mockSearchService, engine *mockEngine) *Server {
	t.Helper()
	ports := &Ports{Search: search, ParsePlan: parseStub}
	if engine != nil {
		ports.Engine = engine
	}
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestHandleSearch(t *testing.T) {
	t.Run("maps query and results", func(t *testing.T) {
		search := &mockSearchService{resp: &domain.SearchResponse{
			Results: []domain.SearchResult{
				{ID: "doc#0", ContentID: "doc", Distance: 0.12, Snippet: "hello", Metadata: map[string]string{"lang": "en"}},
				{ID: "other", ContentID: "other", Distance: 0.5, Degraded: true},
			},
			QueryDegraded: true,
		}}
		server := newToolServer(t, search, nil)

		_, out, err := server.handleSearch(context.Background(), nil, SearchInput{
			Index:       "docs",
			Query:       "hello",
			Limit:       5,
			Filter:      map[string]string{"lang": "en"},
			MaxDistance: 0.8,
		})
		require.NoError(t, err)

		assert.Equal(t, "docs", search.query.Index)
		assert.Equal(t, "hello", search.query.Text)
		assert.Equal(t, 5, search.query.Limit)
		assert.Equal(t, "en", search.query.Filter["lang"])
		assert.InDelta(t, 0.8, search.query.MaxDistance, 1e-6)

		assert.Equal(t, 2, out.Count)
		assert.True(t, out.QueryDegraded)
		assert.Equal(t, "doc#0", out.Results[0].ID)
		assert.Equal(t, "doc", out.Results[0].ContentID)
		assert.Equal(t, "hello", out.Results[0].Snippet)
		assert.True(t, out.Results[1].Degraded)
	})

	t.Run("empty response", func(t *testing.T) {
		server := newToolServer(t, &mockSearchService{}, nil)
		_, out, err := server.handleSearch(context.Background(), nil, SearchInput{Index: "docs", Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
		assert.Empty(t, out.Results)
	})

	t.Run("error propagates", func(t *testing.T) {
		server := newToolServer(t, &mockSearchService{err: domain.ErrNotFound}, nil)
		_, _, err := server.handleSearch(context.Background(), nil, SearchInput{Index: "docs", Query: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHandleStatus(t *testing.T) {
	t.Run("engine missing", func(t *testing.T) {
		server := newToolServer(t, &mockSearchService{}, nil)
		_, _, err := server.handleStatus(context.Background(), nil, StatusInput{})
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	})

	t.Run("single execution includes steps", func(t *testing.T) {
		server := newToolServer(t, &mockSearchService{}, newMockEngine(testExecution()))
		_, out, err := server.handleStatus(context.Background(), nil, StatusInput{ExecutionID: "exec-1"})
		require.NoError(t, err)
		require.Len(t, out.Executions, 1)

		exec := out.Executions[0]
		assert.Equal(t, "exec-1", exec.ExecutionID)
		assert.Equal(t, "ingest-docs", exec.PlanID)
		assert.Equal(t, "paused", exec.Status)
		assert.Equal(t, "cp-3", exec.LastCheckpointID)
		require.Len(t, exec.Steps, 2)
		assert.Equal(t, StepOutput{ID: "chunk", Kind: "chunk", Status: "completed", Attempts: 1}, exec.Steps[0])
		assert.Equal(t, "failed", exec.Steps[1].Status)
		assert.Equal(t, "oracle down", exec.Steps[1].Error)
	})

	t.Run("step without state reports pending", func(t *testing.T) {
		st := testExecution()
		delete(st.Steps, "embed")
		server := newToolServer(t, &mockSearchService{}, newMockEngine(st))
		_, out, err := server.handleStatus(context.Background(), nil, StatusInput{ExecutionID: "exec-1"})
		require.NoError(t, err)
		assert.Equal(t, "pending", out.Executions[0].Steps[1].Status)
	})

	t.Run("unknown execution", func(t *testing.T) {
		server := newToolServer(t, &mockSearchService{}, newMockEngine())
		_, _, err := server.handleStatus(context.Background(), nil, StatusInput{ExecutionID: "nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list omits steps", func(t *testing.T) {
		server := newToolServer(t, &mockSearchService{}, newMockEngine(testExecution()))
		_, out, err := server.handleStatus(context.Background(), nil, StatusInput{})
		require.NoError(t, err)
		require.Len(t, out.Executions, 1)
		assert.Equal(t, "exec-1", out.Executions[0].ExecutionID)
		assert.Empty(t, out.Executions[0].Steps)
	})
}

func TestHandleRunPlan(t *testing.T) {
	t.Run("engine missing", func(t *testing.T) {
		server := newToolServer(t, &mockSearchService{}, nil)
		_, _, err := server.handleRunPlan(context.Background(), nil, RunPlanInput{Plan: "steps: []"})
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	})

	t.Run("parser missing", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Engine: newMockEngine()})
		require.NoError(t, err)
		_, _, err = server.handleRunPlan(context.Background(), nil, RunPlanInput{Plan: "x"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("parse error propagates", func(t *testing.T) {
		engine := newMockEngine()
		server, err := NewServer(&Ports{
			Search: &mockSearchService{},
			Engine: engine,
			ParsePlan: func([]byte, string) (domain.ProcessingPlan, error) {
				return domain.ProcessingPlan{}, domain.ErrValidation
			},
		})
		require.NoError(t, err)
		_, _, err = server.handleRunPlan(context.Background(), nil, RunPlanInput{Plan: "x"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, engine.runs)
	})

	t.Run("wait returns outcome", func(t *testing.T) {
		engine := newMockEngine()
		engine.result = &domain.RunResult{
			State: domain.ExecutionState{
				ExecutionID: "exec-new",
				PlanID:      "mine",
				Plan:        domain.LinearPlan("mine", domain.ProcessStep{ID: "a", Kind: "chunk"}),
				Status:      domain.ExecutionCompleted,
				Steps:       map[string]*domain.StepState{"a": {Status: domain.StepCompleted, Attempts: 1}},
			},
		}
		server := newToolServer(t, &mockSearchService{}, engine)

		_, out, err := server.handleRunPlan(context.Background(), nil, RunPlanInput{Plan: "x", ID: "mine", Wait: true})
		require.NoError(t, err)
		assert.Equal(t, "mine", engine.initPlan.ID)
		assert.Equal(t, []string{"exec-new"}, engine.runs)
		assert.Equal(t, "completed", out.Status)
		assert.Equal(t, "clean", out.Outcome)
		require.Len(t, out.Steps, 1)
	})

	t.Run("wait propagates run error", func(t *testing.T) {
		runErr := errors.New("boom")
		engine := &failingRunEngine{mockEngine: newMockEngine(), err: runErr}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Engine: engine, ParsePlan: parseStub})
		require.NoError(t, err)

		_, _, err = server.handleRunPlan(context.Background(), nil, RunPlanInput{Plan: "x", Wait: true})
		assert.ErrorIs(t, err, runErr)
	})

	t.Run("no wait runs in background", func(t *testing.T) {
		engine := newMockEngine()
		engine.result = &domain.RunResult{State: domain.ExecutionState{Status: domain.ExecutionCompleted}}
		server := newToolServer(t, &mockSearchService{}, engine)

		_, out, err := server.handleRunPlan(context.Background(), nil, RunPlanInput{Plan: "x"})
		require.NoError(t, err)
		assert.Equal(t, "exec-new", out.ExecutionID)
		assert.Equal(t, "mcp-plan", out.PlanID)
		assert.Equal(t, "pending", out.Status)

		select {
		case <-engine.runDone:
		case <-time.After(2 * time.Second):
			t.Fatal("background run did not start")
		}
		server.Wait()
		engine.mu.Lock()
		defer engine.mu.Unlock()
		assert.Equal(t, []string{"exec-new"}, engine.runs)
	})
}

type failingRunEngine struct {
	*mockEngine
	err error
}

func (f *failingRunEngine) Run(context.Context, string) (*domain.RunResult, error) {
	return nil, f.err
}
