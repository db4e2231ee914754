package domain

import "errors"

// Domain errors represent business logic failures.
// Callers match them with errors.Is; detail is added with %w wrapping.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates bad input or configuration, such as a dimension
	// mismatch or a malformed chunking strategy. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedType indicates an unknown strategy, modality or step kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrResourceExhausted indicates the resource pool could not satisfy a
	// request in time. Work is deferred rather than failed.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrOracle indicates the language-understanding oracle failed or timed out.
	// The generator falls back to a structural-only embedding.
	ErrOracle = errors.New("oracle failed")

	// ErrIndexConsistency indicates persisted or live index data disagrees with
	// the index's declared shape. Fatal and surfaced immediately.
	ErrIndexConsistency = errors.New("index consistency violated")

	// ErrStepExecution indicates a processing step failed after its retries.
	ErrStepExecution = errors.New("step execution failed")

	// ErrCheckpoint indicates a checkpoint could not be serialised, stored or read.
	ErrCheckpoint = errors.New("checkpoint failed")

	// ErrExecutionActive indicates an operation needs an execution that is not running.
	ErrExecutionActive = errors.New("execution is active")

	// ErrOracleUnavailable indicates no oracle is configured.
	// Embeddings are still produced, structural-only and marked degraded.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)
