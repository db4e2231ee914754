package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// indexStep stages the embeddings of its prerequisites into a named index
// and commits them.
//
// Params:
//   - index (string, required)
//   - key (string): blob key to load the index from when it is not open,
//     default indexes/<index>.bidx
//
// An index that is neither open nor stored is created from the default
// index configuration.
type indexStep struct {
	deps Deps
	name string
	key  string
}

func newIndexStep(step domain.ProcessStep, deps Deps) (*indexStep, error) {
	if deps.Indexes == nil {
		return nil, fmt.Errorf("%w: index step needs an index service", domain.ErrValidation)
	}
	name := paramString(step, "index", "")
	if name == "" {
		return nil, fmt.Errorf("%w: index step %s has no index", domain.ErrValidation, step.ID)
	}
	return &indexStep{deps: deps, name: name, key: paramString(step, "key", domain.IndexKey(name))}, nil
}

func (s *indexStep) Kind() string { return KindIndex }

func (s *indexStep) Run(ctx context.Context, in *driven.StepInput) (any, error) {
	outs, err := decodeInputs[EmbeddingsOutput](in.Inputs)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	added := 0
	for _, out := range outs {
		for i := range out.Embeddings {
			if _, err := s.deps.Indexes.AddEmbedding(ctx, s.name, &out.Embeddings[i]); err != nil {
				return nil, fmt.Errorf("index %s: %w", out.Embeddings[i].ID, err)
			}
			added++
		}
	}
	if err := s.deps.Indexes.Commit(ctx, s.name); err != nil {
		return nil, err
	}

	stats, err := s.deps.Indexes.Stats(s.name)
	if err != nil {
		return nil, err
	}
	logger.Debug("index: staged %d embeddings into %q (%d items)", added, s.name, stats.Count)
	return IndexOutput{Type: IndexOutput{}.outputType(), Index: s.name, Added: added, Count: stats.Count}, nil
}

// open makes sure the index is available, loading or creating it.
func (s *indexStep) open(ctx context.Context) error {
	if _, err := s.deps.Indexes.Stats(s.name); err == nil {
		return nil
	}

	err := s.deps.Indexes.Load(ctx, s.name, s.key)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	cfg := s.deps.IndexConfig
	if s.deps.Generator != nil {
		cfg.Dimension = s.deps.Generator.Dimension()
	}
	err = s.deps.Indexes.Create(ctx, s.name, cfg)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	return err
}
