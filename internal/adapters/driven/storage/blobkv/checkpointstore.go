package blobkv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

const (
	checkpointPrefix = "checkpoints/"
	checkpointIDs    = "checkpoint-ids/"
)

// CheckpointStore implements driven.CheckpointStore over a BlobStore.
type CheckpointStore struct {
	blobs driven.BlobStore
}

var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore wraps a blob store.
func NewCheckpointStore(blobs driven.BlobStore) *CheckpointStore {
	return &CheckpointStore{blobs: blobs}
}

func bodyKey(executionID string, seq int64) string {
	return fmt.Sprintf("%s%s/%020d.json", checkpointPrefix, executionID, seq)
}

// Save appends a checkpoint. Reusing an ID or a sequence is an error,
// except that saving the same checkpoint again after its body was written
// but its ID was not completes the earlier save.
func (s *CheckpointStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.ID == "" || cp.ExecutionID == "" {
		return fmt.Errorf("%w: checkpoint id and execution id are required", domain.ErrValidation)
	}
	if strings.Contains(cp.ExecutionID, "/") || strings.Contains(cp.ID, "/") {
		return fmt.Errorf("%w: checkpoint and execution ids may not contain '/'", domain.ErrValidation)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshalling checkpoint: %w", err)
	}
	key := bodyKey(cp.ExecutionID, cp.Sequence)

	indexed, err := s.lookup(ctx, checkpointIDs+cp.ID)
	if err != nil {
		return err
	}
	stored, err := s.lookup(ctx, key)
	if err != nil {
		return err
	}

	switch {
	case indexed != nil:
		return fmt.Errorf("%w: checkpoint %s", domain.ErrAlreadyExists, cp.ID)
	case stored == nil:
		if err := s.blobs.Put(ctx, key, data); err != nil {
			return err
		}
	case !bytes.Equal(stored, data):
		return fmt.Errorf("%w: checkpoint %s", domain.ErrAlreadyExists, cp.ID)
	}
	return s.blobs.Put(ctx, checkpointIDs+cp.ID, []byte(key))
}

// lookup returns nil when the key is absent.
func (s *CheckpointStore) lookup(ctx context.Context, key string) ([]byte, error) {
	data, err := s.blobs.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// Get retrieves a checkpoint by ID.
func (s *CheckpointStore) Get(ctx context.Context, id string) (*domain.Checkpoint, error) {
	key, err := s.blobs.Get(ctx, checkpointIDs+id)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, string(key))
}

// Latest returns the highest-sequence checkpoint of an execution.
func (s *CheckpointStore) Latest(ctx context.Context, executionID string) (*domain.Checkpoint, error) {
	keys, err := s.blobs.List(ctx, checkpointPrefix+executionID+"/")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, domain.ErrNotFound
	}
	// Zero-padded sequences sort lexically.
	return s.read(ctx, keys[len(keys)-1])
}

// List returns an execution's checkpoints in ascending sequence order.
func (s *CheckpointStore) List(ctx context.Context, executionID string) ([]domain.Checkpoint, error) {
	keys, err := s.blobs.List(ctx, checkpointPrefix+executionID+"/")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Checkpoint, 0, len(keys))
	for _, key := range keys {
		cp, err := s.read(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	return out, nil
}

// Executions returns the IDs of executions with checkpoints, sorted.
func (s *CheckpointStore) Executions(ctx context.Context) ([]string, error) {
	keys, err := s.blobs.List(ctx, checkpointPrefix)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, key := range keys {
		exec, _, ok := strings.Cut(strings.TrimPrefix(key, checkpointPrefix), "/")
		if !ok {
			continue
		}
		if len(ids) == 0 || ids[len(ids)-1] != exec {
			ids = append(ids, exec)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// DeleteExecution removes every checkpoint of an execution.
func (s *CheckpointStore) DeleteExecution(ctx context.Context, executionID string) error {
	list, err := s.List(ctx, executionID)
	if err != nil {
		return err
	}
	var errs []error
	for _, cp := range list {
		errs = append(errs,
			s.blobs.Delete(ctx, checkpointIDs+cp.ID),
			s.blobs.Delete(ctx, bodyKey(cp.ExecutionID, cp.Sequence)))
	}
	return errors.Join(errs...)
}

func (s *CheckpointStore) read(ctx context.Context, key string) (*domain.Checkpoint, error) {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", domain.ErrCheckpoint, key, err)
	}
	return &cp, nil
}
