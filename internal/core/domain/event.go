package domain

import "time"

// EventKind classifies an absorbed error or notable occurrence during a run.
type EventKind string

// Event kinds.
const (
	// EventDegradedEmbedding records an embedding produced without its semantic side.
	EventDegradedEmbedding EventKind = "degraded_embedding"

	// EventStepRetry records a failed attempt that will be retried.
	EventStepRetry EventKind = "step_retry"

	// EventStepDeferred records a step postponed by resource backpressure.
	EventStepDeferred EventKind = "step_deferred"

	// EventStepFailed records a step that exhausted its retries or lost a prerequisite.
	EventStepFailed EventKind = "step_failed"

	// EventCheckpointFailed records a checkpoint interval whose writes all failed.
	EventCheckpointFailed EventKind = "checkpoint_failed"

	// EventBudgetExceeded records a run stopped by its wall-clock budget.
	EventBudgetExceeded EventKind = "budget_exceeded"
)

// Event is an absorbed error or warning surfaced on a RunResult.
type Event struct {
	Kind    EventKind `json:"kind"`
	StepID  string    `json:"step_id,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EventSink receives events raised while a step runs.
type EventSink interface {
	Record(e Event)
}
