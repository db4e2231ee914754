package steps

import (
	"context"
	"fmt"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// saveIndexStep persists a named index.
//
// Params:
//   - index (string, required)
//   - key (string): default indexes/<index>.bidx
type saveIndexStep struct {
	deps Deps
	name string
	key  string
}

func newSaveIndexStep(step domain.ProcessStep, deps Deps) (*saveIndexStep, error) {
	if deps.Indexes == nil {
		return nil, fmt.Errorf("%w: save_index step needs an index service", domain.ErrValidation)
	}
	name := paramString(step, "index", "")
	if name == "" {
		return nil, fmt.Errorf("%w: save_index step %s has no index", domain.ErrValidation, step.ID)
	}
	return &saveIndexStep{deps: deps, name: name, key: paramString(step, "key", domain.IndexKey(name))}, nil
}

func (s *saveIndexStep) Kind() string { return KindSaveIndex }

func (s *saveIndexStep) Run(ctx context.Context, _ *driven.StepInput) (any, error) {
	if err := s.deps.Indexes.Save(ctx, s.name, s.key); err != nil {
		return nil, err
	}
	return SavedIndexOutput{Type: SavedIndexOutput{}.outputType(), Index: s.name, Key: s.key}, nil
}
