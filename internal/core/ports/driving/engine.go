package driving

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// ExecutionEngine runs processing plans with checkpoint and resume.
type ExecutionEngine interface {
	// Initialize validates a plan and creates a Pending execution.
	Initialize(ctx context.Context, plan domain.ProcessingPlan) (*domain.ExecutionState, error)

	// Run drives an execution until it completes, fails, or is stopped.
	// Cancelling ctx stops scheduling, lets in-flight steps finish and checkpoints.
	Run(ctx context.Context, executionID string) (*domain.RunResult, error)

	// Pause stops a running execution and waits until it is Paused.
	Pause(ctx context.Context, executionID string) error

	// Resume derives a new state from a checkpoint and runs it.
	Resume(ctx context.Context, checkpointID string) (*domain.RunResult, error)

	// ResumeLatest resumes an execution from its most recent checkpoint.
	ResumeLatest(ctx context.Context, executionID string) (*domain.RunResult, error)

	// Status returns a copy of an execution's state. Executions not held in
	// memory are read from their latest checkpoint.
	Status(ctx context.Context, executionID string) (*domain.ExecutionState, error)

	// List returns copies of every execution held in memory or checkpointed,
	// ordered by creation time.
	List(ctx context.Context) ([]domain.ExecutionState, error)

	// Checkpoints lists an execution's checkpoints, oldest first.
	Checkpoints(ctx context.Context, executionID string) ([]domain.Checkpoint, error)

	// Delete forgets a non-running execution and its checkpoints.
	Delete(ctx context.Context, executionID string) error
}
