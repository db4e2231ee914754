package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func checkpoint(id, exec string, seq int64) *domain.Checkpoint {
	return &domain.Checkpoint{
		ID:            id,
		ExecutionID:   exec,
		Sequence:      seq,
		FormatVersion: domain.CheckpointFormatVersion,
		State:         []byte(`{"status":"running"}`),
		CreatedAt:     time.Now(),
	}
}

func TestCheckpointStore_SaveAndLatest(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, checkpoint("cp-2", "exec-1", 2)))
	require.NoError(t, store.Save(ctx, checkpoint("cp-1", "exec-1", 1)))
	require.NoError(t, store.Save(ctx, checkpoint("cp-9", "exec-2", 9)))

	latest, err := store.Latest(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "cp-2", latest.ID)

	list, err := store.List(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].Sequence)
	assert.Equal(t, int64(2), list[1].Sequence)

	got, err := store.Get(ctx, "cp-9")
	require.NoError(t, err)
	assert.Equal(t, "exec-2", got.ExecutionID)
}

func TestCheckpointStore_AppendOnly(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, checkpoint("cp-1", "exec-1", 1)))

	err := store.Save(ctx, checkpoint("cp-1", "exec-1", 2))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCheckpointStore_NotFound(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Latest(ctx, "exec-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStore_DeleteExecution(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, checkpoint("cp-1", "exec-1", 1)))
	require.NoError(t, store.Save(ctx, checkpoint("cp-2", "exec-2", 1)))

	ids, err := store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-1", "exec-2"}, ids)

	require.NoError(t, store.DeleteExecution(ctx, "exec-1"))

	ids, err = store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-2"}, ids)

	_, err = store.Get(ctx, "cp-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, "cp-2")
	assert.NoError(t, err)
}
