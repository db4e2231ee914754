package steps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// defaultEmbedConcurrency bounds generator calls in flight per embed step.
const defaultEmbedConcurrency = 4

// embedStep generates fused embeddings for every chunk produced by its
// prerequisites. Without chunk inputs it embeds whole contents.
//
// Params:
//   - content_ids ([]string): contents embedded whole when no chunks arrive
//   - concurrency (int): parallel generator calls, default 4
//
// Embedding IDs are the chunk ID (content#index) or the content ID, so a
// re-run replaces rather than duplicates index entries.
type embedStep struct {
	deps        Deps
	contentIDs  []string
	concurrency int
}

// embedJob is one generator call.
type embedJob struct {
	id    string
	input domain.EmbeddingInput
	kind  domain.EmbeddingKind
}

func newEmbedStep(step domain.ProcessStep, deps Deps) (*embedStep, error) {
	if deps.Contents == nil || deps.Generator == nil {
		return nil, fmt.Errorf("%w: embed step needs a content source and a generator", domain.ErrValidation)
	}
	return &embedStep{
		deps:        deps,
		contentIDs:  paramStrings(step, "content_ids"),
		concurrency: max(paramInt(step, "concurrency", defaultEmbedConcurrency), 1),
	}, nil
}

func (s *embedStep) Kind() string { return KindEmbed }

func (s *embedStep) Run(ctx context.Context, in *driven.StepInput) (any, error) {
	jobs, err := s.jobs(ctx, in)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Embedding, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			emb, err := s.generate(gctx, job)
			if err != nil {
				return fmt.Errorf("embed %s: %w", job.id, err)
			}
			results[i] = *emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := EmbeddingsOutput{Type: EmbeddingsOutput{}.outputType(), Embeddings: results}
	for _, emb := range results {
		if !emb.Degraded {
			continue
		}
		out.Degraded++
		in.Events.Record(domain.Event{
			Kind:    domain.EventDegradedEmbedding,
			Message: fmt.Sprintf("%s: %s", emb.ID, emb.DegradedReason),
		})
	}
	logger.Debug("embed: %d embeddings (%d degraded)", len(results), out.Degraded)
	return out, nil
}

// generate runs one job, holding an embedding slot when a coordinator is set.
func (s *embedStep) generate(ctx context.Context, job embedJob) (*domain.Embedding, error) {
	var emb *domain.Embedding
	fn := func(ctx context.Context) error {
		var err error
		emb, err = s.deps.Generator.Generate(ctx, job.input, job.kind)
		return err
	}

	var err error
	if s.deps.Resources != nil {
		err = s.deps.Resources.Do(ctx, domain.Requirements{domain.ResourceEmbedding: 1}, fn)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return nil, err
	}
	emb.ID = job.id
	return emb, nil
}

func (s *embedStep) jobs(ctx context.Context, in *driven.StepInput) ([]embedJob, error) {
	chunked, err := decodeInputs[ChunksOutput](in.Inputs)
	if err != nil {
		return nil, err
	}

	var jobs []embedJob
	for _, out := range chunked {
		for _, set := range out.Sets {
			content, err := s.deps.Contents.Open(ctx, set.ContentID)
			if err != nil {
				return nil, fmt.Errorf("open content %s: %w", set.ContentID, err)
			}
			for _, r := range set.Chunks {
				if r.Offset < 0 || r.Offset+r.Length > len(content.Data) {
					return nil, fmt.Errorf("%w: chunk %d of %s is outside the content (changed since chunking?)",
						domain.ErrValidation, r.Index, set.ContentID)
				}
				chunk := domain.ContentChunk{
					ContentID: content.ID,
					Modality:  content.Modality,
					Index:     r.Index,
					Offset:    r.Offset,
					Length:    r.Length,
					Overlap:   r.Overlap,
					Data:      content.Data[r.Offset : r.Offset+r.Length],
				}
				input := chunk.Input()
				for k, v := range content.Metadata {
					if _, ok := input.Metadata[k]; !ok {
						input.Metadata[k] = v
					}
				}
				jobs = append(jobs, embedJob{id: chunk.ID(), input: input, kind: domain.EmbeddingChunk})
			}
		}
	}
	if len(chunked) > 0 {
		return jobs, nil
	}

	if len(s.contentIDs) == 0 {
		return nil, fmt.Errorf("%w: embed step %s has no chunk inputs and no content_ids",
			domain.ErrValidation, in.Step.ID)
	}
	for _, id := range s.contentIDs {
		content, err := s.deps.Contents.Open(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open content %s: %w", id, err)
		}
		jobs = append(jobs, embedJob{id: content.ID, input: content.Input(), kind: domain.EmbeddingContent})
	}
	return jobs, nil
}
