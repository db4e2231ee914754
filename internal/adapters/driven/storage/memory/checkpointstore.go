package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]domain.Checkpoint
	byExecution map[string][]string
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]domain.Checkpoint),
		byExecution: make(map[string][]string),
	}
}

// Save appends a checkpoint. Reusing an ID is an error.
func (s *CheckpointStore) Save(_ context.Context, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkpoints[cp.ID]; ok {
		return fmt.Errorf("%w: checkpoint %s", domain.ErrAlreadyExists, cp.ID)
	}
	stored := *cp
	stored.State = slices.Clone(cp.State)
	s.checkpoints[cp.ID] = stored
	s.byExecution[cp.ExecutionID] = append(s.byExecution[cp.ExecutionID], cp.ID)
	return nil
}

// Get retrieves a checkpoint by ID.
func (s *CheckpointStore) Get(_ context.Context, id string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp.State = slices.Clone(cp.State)
	return &cp, nil
}

// Latest returns the highest-sequence checkpoint of an execution.
func (s *CheckpointStore) Latest(ctx context.Context, executionID string) (*domain.Checkpoint, error) {
	list, err := s.List(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return &list[len(list)-1], nil
}

// List returns an execution's checkpoints in ascending sequence order.
func (s *CheckpointStore) List(_ context.Context, executionID string) ([]domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byExecution[executionID]
	out := make([]domain.Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp := s.checkpoints[id]
		cp.State = slices.Clone(cp.State)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b domain.Checkpoint) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return out, nil
}

// Executions returns the IDs of executions with checkpoints, sorted.
func (s *CheckpointStore) Executions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.byExecution))
	for id := range s.byExecution {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// DeleteExecution removes every checkpoint of an execution.
func (s *CheckpointStore) DeleteExecution(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byExecution[executionID] {
		delete(s.checkpoints, id)
	}
	delete(s.byExecution, executionID)
	return nil
}

