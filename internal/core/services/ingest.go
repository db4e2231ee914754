package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingester = (*IngestService)(nil)

// IngestService stores contents and indexes them with a
// chunk -> embed -> index -> save_index plan run by the engine.
type IngestService struct {
	contents driven.ContentStore
	engine   driving.ExecutionEngine
	indexes  driving.IndexService

	// mu serialises pruning and loading per service.
	mu sync.Mutex
}

// NewIngestService creates an ingest service.
func NewIngestService(
	contents driven.ContentStore,
	engine driving.ExecutionEngine,
	indexes driving.IndexService,
) *IngestService {
	return &IngestService{
		contents: contents,
		engine:   engine,
		indexes:  indexes,
	}
}

// Prepare stores the contents, drops their stale index entries and
// initializes the ingest plan.
func (s *IngestService) Prepare(ctx context.Context, req driving.IngestRequest) (*domain.ExecutionState, error) {
	if req.Index == "" {
		return nil, fmt.Errorf("%w: index name is required", domain.ErrValidation)
	}
	if len(req.Contents) == 0 {
		return nil, fmt.Errorf("%w: nothing to ingest", domain.ErrValidation)
	}
	if req.Chunk != nil {
		if err := req.Chunk.Validate(); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(req.Contents))
	now := time.Now()
	for _, c := range req.Contents {
		if c == nil || c.ID == "" {
			return nil, fmt.Errorf("%w: content id is required", domain.ErrValidation)
		}
		if !c.Modality.IsValid() {
			return nil, fmt.Errorf("%w: content %s has modality %q", domain.ErrUnsupportedType, c.ID, c.Modality)
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		if err := s.contents.Put(ctx, c); err != nil {
			return nil, fmt.Errorf("store content %s: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}

	// Re-ingested content may now have fewer chunks than before.
	removed, err := s.prune(ctx, req.Index, ids)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		logger.Debug("ingest: dropped %d stale entries from %q", removed, req.Index)
	}

	state, err := s.engine.Initialize(ctx, IngestPlan(req, ids))
	if err != nil {
		return nil, err
	}
	logger.Info("Prepared ingest of %d contents into %q as execution %s", len(ids), req.Index, state.ExecutionID)
	return state, nil
}

// Ingest prepares and runs an ingest execution.
func (s *IngestService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.RunResult, error) {
	state, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.engine.Run(ctx, state.ExecutionID)
}

// Forget removes contents and their index entries, then saves the index.
func (s *IngestService) Forget(ctx context.Context, index string, contentIDs ...string) (int, error) {
	if index == "" {
		return 0, fmt.Errorf("%w: index name is required", domain.ErrValidation)
	}

	removed, err := s.prune(ctx, index, contentIDs)
	if err != nil {
		return removed, err
	}

	var errs []error
	for _, id := range contentIDs {
		if err := s.contents.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete content %s: %w", id, err))
		}
	}
	if removed > 0 {
		if err := s.indexes.Save(ctx, index, domain.IndexKey(index)); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("Forgot %d contents (%d index entries) from %q", len(contentIDs), removed, index)
	return removed, errors.Join(errs...)
}

// prune removes every entry of the given contents from an index. A missing
// index has nothing to prune.
func (s *IngestService) prune(ctx context.Context, index string, contentIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.indexes.Names(), index) {
		err := s.indexes.Load(ctx, index, domain.IndexKey(index))
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
	}

	removed := 0
	for _, id := range contentIDs {
		n, err := s.removeEntries(ctx, index, id)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	if removed > 0 {
		if err := s.indexes.Commit(ctx, index); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// removeEntries drops a content's own entry and its chunk entries, which
// are numbered from zero without gaps.
func (s *IngestService) removeEntries(ctx context.Context, index, contentID string) (int, error) {
	removed := 0
	if err := s.indexes.Remove(ctx, index, contentID); err == nil {
		removed++
	} else if !errors.Is(err, domain.ErrNotFound) {
		return removed, err
	}

	for i := 0; ; i++ {
		chunkID := domain.ContentChunk{ContentID: contentID, Index: i}.ID()
		err := s.indexes.Remove(ctx, index, chunkID)
		if errors.Is(err, domain.ErrNotFound) {
			return removed, nil
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
}

// IngestPlan builds the linear ingest plan for content IDs.
func IngestPlan(req driving.IngestRequest, contentIDs []string) domain.ProcessingPlan {
	ids := make([]any, len(contentIDs))
	for i, id := range contentIDs {
		ids[i] = id
	}

	var total int
	for _, c := range req.Contents {
		if c != nil {
			total += len(c.Data)
		}
	}

	chunk := map[string]any{"content_ids": ids, domain.ChunkMemoryParam: total}
	if req.Chunk != nil {
		chunk["size"] = req.Chunk.Size
		chunk["overlap"] = req.Chunk.Overlap
		if req.Chunk.Boundary != "" {
			chunk["boundary"] = string(req.Chunk.Boundary)
		}
	}
	embed := map[string]any{}
	if req.Concurrency > 0 {
		embed["concurrency"] = req.Concurrency
	}
	target := map[string]any{"index": req.Index}

	plan := domain.LinearPlan("ingest-"+req.Index,
		domain.ProcessStep{ID: "chunk", Kind: domain.StepKindChunk, Params: chunk},
		domain.ProcessStep{ID: "embed", Kind: domain.StepKindEmbed, Params: embed},
		domain.ProcessStep{ID: "index", Kind: domain.StepKindIndex, Params: target},
		domain.ProcessStep{ID: "save", Kind: domain.StepKindSaveIndex, Params: target},
	)
	plan.Name = fmt.Sprintf("ingest %d contents into %s", len(contentIDs), req.Index)
	return plan
}
