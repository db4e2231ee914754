package steps

import (
	"context"
	"fmt"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// chunkStep splits contents into chunk ranges.
//
// Params:
//   - content_ids ([]string, required)
//   - size, overlap (int) and boundary (string) override the default strategy
type chunkStep struct {
	deps       Deps
	contentIDs []string
	strategy   domain.ChunkStrategy
}

func newChunkStep(step domain.ProcessStep, deps Deps) (*chunkStep, error) {
	if deps.Contents == nil || deps.Chunker == nil {
		return nil, fmt.Errorf("%w: chunk step needs a content source and a chunker", domain.ErrValidation)
	}
	ids := paramStrings(step, "content_ids")
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: chunk step %s has no content_ids", domain.ErrValidation, step.ID)
	}

	strategy := deps.ChunkStrategy
	strategy.Size = paramInt(step, "size", strategy.Size)
	strategy.Overlap = paramInt(step, "overlap", strategy.Overlap)
	strategy.Boundary = domain.BoundaryPolicy(paramString(step, "boundary", string(strategy.Boundary)))
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	return &chunkStep{deps: deps, contentIDs: ids, strategy: strategy}, nil
}

func (s *chunkStep) Kind() string { return KindChunk }

func (s *chunkStep) Run(ctx context.Context, _ *driven.StepInput) (any, error) {
	out := ChunksOutput{Type: ChunksOutput{}.outputType()}
	total := 0
	for _, id := range s.contentIDs {
		content, err := s.deps.Contents.Open(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open content %s: %w", id, err)
		}
		seq, err := s.deps.Chunker.Chunk(content, s.strategy)
		if err != nil {
			return nil, err
		}

		set := ChunkSet{ContentID: content.ID, Modality: content.Modality}
		for c := range seq {
			set.Chunks = append(set.Chunks, ChunkRange{
				Index:   c.Index,
				Offset:  c.Offset,
				Length:  c.Length,
				Overlap: c.Overlap,
			})
		}
		total += len(set.Chunks)
		out.Sets = append(out.Sets, set)
	}
	logger.Debug("chunk: %d contents into %d chunks", len(out.Sets), total)
	return out, nil
}
