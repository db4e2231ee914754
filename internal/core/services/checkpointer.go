package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// checkpointRetryDelay spaces write attempts within one checkpoint.
const checkpointRetryDelay = 50 * time.Millisecond

// checkpointer writes execution snapshots to a CheckpointStore.
type checkpointer struct {
	store   driven.CheckpointStore
	retries int
}

// snapshot serialises the state under the execution lock and reserves
// the next sequence number.
func (c *checkpointer) snapshot(ex *execution) (*domain.Checkpoint, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	ex.state.UpdatedAt = time.Now()
	data, err := json.Marshal(ex.state)
	if err != nil {
		return nil, fmt.Errorf("%w: encode state: %v", domain.ErrCheckpoint, err)
	}
	ex.seq++
	return &domain.Checkpoint{
		ID:            uuid.New().String(),
		ExecutionID:   ex.state.ExecutionID,
		Sequence:      ex.seq,
		FormatVersion: domain.CheckpointFormatVersion,
		State:         data,
		CreatedAt:     ex.state.UpdatedAt,
	}, nil
}

// write takes a snapshot and stores it outside the lock, retrying failed
// writes. Exhausted retries raise a checkpoint_failed event and never
// fail the execution.
func (c *checkpointer) write(ctx context.Context, ex *execution) (*domain.Checkpoint, error) {
	cp, err := c.snapshot(ex)
	if err != nil {
		ex.record(domain.Event{Kind: domain.EventCheckpointFailed, Message: err.Error()})
		return nil, err
	}

	attempts := max(c.retries, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		err = c.store.Save(ctx, cp)
		if err == nil {
			ex.mu.Lock()
			ex.state.LastCheckpointID = cp.ID
			ex.mu.Unlock()
			logger.Debug("Checkpoint %s written for execution %s (seq %d)", cp.ID, cp.ExecutionID, cp.Sequence)
			return cp, nil
		}
		logger.Debug("Checkpoint write %d/%d for execution %s failed: %v", attempt, attempts, cp.ExecutionID, err)
		if attempt < attempts && !sleep(ctx, checkpointRetryDelay*time.Duration(attempt)) {
			break
		}
	}

	err = fmt.Errorf("%w: execution %s: %v", domain.ErrCheckpoint, cp.ExecutionID, err)
	logger.Warn("checkpoint failed after %d attempts: %v", attempts, err)
	ex.record(domain.Event{Kind: domain.EventCheckpointFailed, Message: err.Error()})
	return nil, err
}

// decodeCheckpoint restores the state held by a checkpoint.
func decodeCheckpoint(cp *domain.Checkpoint) (*domain.ExecutionState, error) {
	if cp.FormatVersion != domain.CheckpointFormatVersion {
		return nil, fmt.Errorf("%w: checkpoint %s has unsupported format version %d",
			domain.ErrCheckpoint, cp.ID, cp.FormatVersion)
	}
	var state domain.ExecutionState
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, fmt.Errorf("%w: checkpoint %s: %v", domain.ErrCheckpoint, cp.ID, err)
	}
	if state.ExecutionID != cp.ExecutionID {
		return nil, fmt.Errorf("%w: checkpoint %s belongs to %s but holds state for %s",
			domain.ErrCheckpoint, cp.ID, cp.ExecutionID, state.ExecutionID)
	}
	if state.Steps == nil {
		state.Steps = make(map[string]*domain.StepState)
	}
	for _, step := range state.Plan.Steps {
		if state.Steps[step.ID] == nil {
			state.Steps[step.ID] = &domain.StepState{Status: domain.StepPending}
		}
	}
	return &state, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
