package driven

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// CheckpointStore persists checkpoints. Checkpoints are append-only:
// Save never overwrites, and the highest sequence is the resume point.
type CheckpointStore interface {
	// Save appends a checkpoint.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Get returns a checkpoint by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Checkpoint, error)

	// Latest returns the checkpoint with the highest sequence for an execution,
	// or domain.ErrNotFound.
	Latest(ctx context.Context, executionID string) (*domain.Checkpoint, error)

	// List returns an execution's checkpoints in ascending sequence order.
	List(ctx context.Context, executionID string) ([]domain.Checkpoint, error)

	// Executions returns the IDs of executions with at least one checkpoint, sorted.
	Executions(ctx context.Context) ([]string, error)

	// DeleteExecution removes every checkpoint of an execution.
	DeleteExecution(ctx context.Context, executionID string) error
}
