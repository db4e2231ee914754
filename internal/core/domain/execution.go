package domain

import (
	"encoding/json"
	"maps"
	"time"
)

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

// Execution statuses. Completed and Failed are terminal.
const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// IsTerminal returns true for Completed and Failed.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// StepStatus is the state of one step within an execution.
// Transitions are monotonic: Pending -> Running -> Completed | Failed.
type StepStatus string

// Step statuses.
const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepState records the progress of one step.
type StepState struct {
	Status   StepStatus `json:"status"`
	Attempts int        `json:"attempts"`
	Error    string     `json:"error,omitempty"`

	// Output is the step's serialised result, handed to dependents as input.
	Output json.RawMessage `json:"output,omitempty"`

	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// ExecutionState is the mutable record of one execution.
// It is owned exclusively by the execution engine.
type ExecutionState struct {
	ExecutionID string          `json:"execution_id"`
	PlanID      string          `json:"plan_id"`
	Plan        ProcessingPlan  `json:"plan"`
	Status      ExecutionStatus `json:"status"`

	Steps map[string]*StepState `json:"steps"`

	LastCheckpointID string `json:"last_checkpoint_id,omitempty"`

	// ResumedFrom is the checkpoint this state was derived from, if any.
	ResumedFrom string `json:"resumed_from,omitempty"`

	ResourceUsage map[ResourceKind]ResourceUsage `json:"resource_usage,omitempty"`

	// Events accumulates absorbed errors across runs of this execution.
	Events []Event `json:"events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to read without the engine's lock.
// The plan is shared because it is immutable once running.
func (s *ExecutionState) Clone() *ExecutionState {
	out := *s
	out.Steps = make(map[string]*StepState, len(s.Steps))
	for id, st := range s.Steps {
		cp := *st
		if st.Output != nil {
			cp.Output = append(json.RawMessage(nil), st.Output...)
		}
		out.Steps[id] = &cp
	}
	out.ResourceUsage = maps.Clone(s.ResourceUsage)
	out.Events = append([]Event(nil), s.Events...)
	return &out
}

// CountSteps returns how many steps are in the given status.
func (s *ExecutionState) CountSteps(status StepStatus) int {
	n := 0
	for _, st := range s.Steps {
		if st.Status == status {
			n++
		}
	}
	return n
}

// Checkpoint is an append-only snapshot of an ExecutionState.
// The checkpoint with the highest Sequence is the execution's resume point.
type Checkpoint struct {
	ID            string    `json:"id"`
	ExecutionID   string    `json:"execution_id"`
	Sequence      int64     `json:"sequence"`
	FormatVersion int       `json:"format_version"`
	State         []byte    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// CheckpointFormatVersion is the current serialisation version.
const CheckpointFormatVersion = 1

// Outcome classifies how a run ended.
type Outcome string

// Run outcomes.
const (
	OutcomeClean    Outcome = "clean"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
	OutcomePaused   Outcome = "paused"
)

// RunResult is returned by run and resume.
type RunResult struct {
	// State is the execution state when the run loop exited.
	State ExecutionState `json:"state"`

	// Events are the absorbed or degraded events raised during this run.
	Events []Event `json:"events"`
}

// Outcome distinguishes clean completion, degraded completion, failure and pause.
func (r *RunResult) Outcome() Outcome {
	switch r.State.Status {
	case ExecutionFailed:
		return OutcomeFailed
	case ExecutionCompleted:
		for _, e := range r.Events {
			if e.Kind == EventDegradedEmbedding {
				return OutcomeDegraded
			}
		}
		return OutcomeClean
	default:
		return OutcomePaused
	}
}

// EngineConfig tunes the execution engine.
type EngineConfig struct {
	// Workers bounds how many steps run at once.
	Workers int

	// CheckpointInterval is the periodic checkpoint timer.
	CheckpointInterval time.Duration

	// CheckpointEverySteps writes a checkpoint after this many step completions.
	// Zero disables the count trigger.
	CheckpointEverySteps int

	// CheckpointRetries is the number of write attempts per checkpoint.
	CheckpointRetries int

	// MaxRetries is the default retry bound for a failing step.
	MaxRetries int

	// RetryBaseDelay and RetryMaxDelay shape exponential backoff.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// DeferDelay is how long a step waits after a resource denial.
	DeferDelay time.Duration

	// WallClockBudget stops the run when positive and exceeded.
	WallClockBudget time.Duration
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:              4,
		CheckpointInterval:   300 * time.Second,
		CheckpointEverySteps: 1,
		CheckpointRetries:    3,
		MaxRetries:           3,
		RetryBaseDelay:       200 * time.Millisecond,
		RetryMaxDelay:        10 * time.Second,
		DeferDelay:           500 * time.Millisecond,
	}
}
