package driven

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// StepInput is what a step handler receives.
type StepInput struct {
	// ExecutionID is the running execution.
	ExecutionID string

	// Step is the plan step being executed.
	Step domain.ProcessStep

	// Inputs holds the outputs of the step's prerequisites, keyed by step ID.
	Inputs map[string]json.RawMessage

	// Events records absorbed errors such as degraded embeddings.
	Events domain.EventSink
}

// StepHandler executes one kind of processing step.
//
// Handlers must be idempotent: after a resume, a step that was running
// when the checkpoint was taken runs again from the start. The returned
// value is JSON-encoded into the execution state and handed to dependents.
type StepHandler interface {
	// Kind returns the step kind this handler serves.
	Kind() string

	// Run executes the step. Errors are retried with backoff by the engine.
	Run(ctx context.Context, in *StepInput) (any, error)
}

// StepHandlerResolver builds a handler for a plan step.
type StepHandlerResolver interface {
	// Resolve returns the handler for the step, or domain.ErrUnsupportedType.
	Resolve(step domain.ProcessStep) (StepHandler, error)
}
