package steps

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Func adapts an ordinary function to a StepHandler.
type Func struct {
	StepKind string
	Fn       func(ctx context.Context, in *driven.StepInput) (any, error)
}

// Kind returns the step kind.
func (f Func) Kind() string { return f.StepKind }

// Run calls the function.
func (f Func) Run(ctx context.Context, in *driven.StepInput) (any, error) {
	return f.Fn(ctx, in)
}
