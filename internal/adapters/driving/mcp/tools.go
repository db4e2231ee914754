package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Index       string            `json:"index" jsonschema:"name of the index to search"`
	Query       string            `json:"query" jsonschema:"the text to find similar content for"`
	Limit       int               `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Filter      map[string]string `json:"filter,omitempty" jsonschema:"metadata key/value pairs every result must match"`
	MaxDistance float32           `json:"max_distance,omitempty" jsonschema:"drop results further than this distance"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results       []SearchResultOutput `json:"results"`
	Count         int                  `json:"count"`
	QueryDegraded bool                 `json:"query_degraded,omitempty"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ID        string            `json:"id"`
	ContentID string            `json:"content_id"`
	Distance  float32           `json:"distance"`
	Snippet   string            `json:"snippet,omitempty"`
	Degraded  bool              `json:"degraded,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// StatusInput is the input schema for the execution_status tool.
type StatusInput struct {
	ExecutionID string `json:"execution_id,omitempty" jsonschema:"execution to describe; empty lists every execution"`
}

// StepOutput describes one step of an execution.
type StepOutput struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// ExecutionOutput summarises an execution.
type ExecutionOutput struct {
	ExecutionID      string       `json:"execution_id"`
	PlanID           string       `json:"plan_id"`
	Status           string       `json:"status"`
	LastCheckpointID string       `json:"last_checkpoint_id,omitempty"`
	Steps            []StepOutput `json:"steps,omitempty"`
	Outcome          string       `json:"outcome,omitempty"`
	Events           int          `json:"events,omitempty"`
}

// StatusOutput is the output schema for the execution_status tool.
type StatusOutput struct {
	Executions []ExecutionOutput `json:"executions"`
}

// RunPlanInput is the input schema for the run_plan tool.
type RunPlanInput struct {
	Plan string `json:"plan" jsonschema:"processing plan as YAML or JSON"`
	ID   string `json:"id,omitempty" jsonschema:"plan id when the document has none"`
	Wait bool   `json:"wait,omitempty" jsonschema:"block until the run finishes or pauses"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find indexed content similar to a text query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "execution_status",
		Description: "Describe a processing execution, or list all executions",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_plan",
		Description: "Start a processing plan with checkpointing",
	}, s.handleRunPlan)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	resp, err := s.ports.Search.Search(ctx, domain.Query{
		Index:       input.Index,
		Text:        input.Query,
		Limit:       input.Limit,
		Filter:      input.Filter,
		MaxDistance: input.MaxDistance,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:       make([]SearchResultOutput, len(resp.Results)),
		Count:         len(resp.Results),
		QueryDegraded: resp.QueryDegraded,
	}
	for i, r := range resp.Results {
		output.Results[i] = SearchResultOutput{
			ID:        r.ID,
			ContentID: r.ContentID,
			Distance:  r.Distance,
			Snippet:   r.Snippet,
			Degraded:  r.Degraded,
			Metadata:  r.Metadata,
		}
	}
	return nil, output, nil
}

// handleStatus handles the execution_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Engine == nil {
		return nil, StatusOutput{}, ErrEngineUnavailable
	}

	if input.ExecutionID != "" {
		state, err := s.ports.Engine.Status(ctx, input.ExecutionID)
		if err != nil {
			return nil, StatusOutput{}, err
		}
		return nil, StatusOutput{Executions: []ExecutionOutput{executionOutput(state, true)}}, nil
	}

	states, err := s.ports.Engine.List(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{Executions: make([]ExecutionOutput, len(states))}
	for i := range states {
		out.Executions[i] = executionOutput(&states[i], false)
	}
	return nil, out, nil
}

// handleRunPlan handles the run_plan tool invocation.
func (s *Server) handleRunPlan(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunPlanInput,
) (*mcp.CallToolResult, ExecutionOutput, error) {
	if s.ports.Engine == nil {
		return nil, ExecutionOutput{}, ErrEngineUnavailable
	}
	if s.ports.ParsePlan == nil {
		return nil, ExecutionOutput{}, fmt.Errorf("%w: plan parsing is not configured", domain.ErrValidation)
	}

	id := input.ID
	if id == "" {
		id = "mcp-plan"
	}
	plan, err := s.ports.ParsePlan([]byte(input.Plan), id)
	if err != nil {
		return nil, ExecutionOutput{}, err
	}
	state, err := s.ports.Engine.Initialize(ctx, plan)
	if err != nil {
		return nil, ExecutionOutput{}, err
	}

	if !input.Wait {
		s.startRun(state.ExecutionID)
		return nil, executionOutput(state, true), nil
	}

	res, err := s.ports.Engine.Run(ctx, state.ExecutionID)
	if err != nil {
		return nil, ExecutionOutput{}, err
	}
	out := executionOutput(&res.State, true)
	out.Outcome = string(res.Outcome())
	out.Events = len(res.Events)
	return nil, out, nil
}

func executionOutput(state *domain.ExecutionState, withSteps bool) ExecutionOutput {
	out := ExecutionOutput{
		ExecutionID:      state.ExecutionID,
		PlanID:           state.PlanID,
		Status:           string(state.Status),
		LastCheckpointID: state.LastCheckpointID,
	}
	if !withSteps {
		return out
	}
	for _, step := range state.Plan.Steps {
		so := StepOutput{ID: step.ID, Kind: step.Kind, Status: string(domain.StepPending)}
		if st := state.Steps[step.ID]; st != nil {
			so.Status = string(st.Status)
			so.Attempts = st.Attempts
			so.Error = st.Error
		}
		out.Steps = append(out.Steps, so)
	}
	return out
}
