package driving

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// Ingester stores contents and indexes them through the execution engine.
type Ingester interface {
	// Prepare stores the contents, drops their stale index entries and
	// initializes a chunk, embed, index and save plan for them. The returned
	// execution is Pending; the caller runs it with the engine.
	Prepare(ctx context.Context, req IngestRequest) (*domain.ExecutionState, error)

	// Ingest prepares and runs an ingest execution to completion.
	Ingest(ctx context.Context, req IngestRequest) (*domain.RunResult, error)

	// Forget removes contents and their index entries, then saves the index.
	// It returns the number of index entries removed.
	Forget(ctx context.Context, index string, contentIDs ...string) (int, error)
}

// IngestRequest describes one ingest.
type IngestRequest struct {
	// Index is the target index name.
	Index string

	// Contents are stored before the plan is built.
	Contents []*domain.Content

	// Chunk overrides the default chunk strategy when non-nil.
	Chunk *domain.ChunkStrategy

	// Concurrency bounds parallel embedding inside the embed step. Zero
	// uses the step default.
	Concurrency int
}
