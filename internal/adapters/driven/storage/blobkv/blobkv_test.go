package blobkv

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func newCheckpoint(id, execID string, seq int64) *domain.Checkpoint {
	return &domain.Checkpoint{
		ID:            id,
		ExecutionID:   execID,
		Sequence:      seq,
		FormatVersion: domain.CheckpointFormatVersion,
		State:         []byte(`{"status":"running"}`),
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCheckpointStore_SaveGetLatest(t *testing.T) {
	ctx := context.Background()
	store := NewCheckpointStore(memory.NewBlobStore())

	for seq := int64(1); seq <= 11; seq++ {
		require.NoError(t, store.Save(ctx, newCheckpoint("cp-"+string(rune('a'+seq)), "exec-1", seq)))
	}

	got, err := store.Get(ctx, "cp-c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Sequence)
	assert.Equal(t, []byte(`{"status":"running"}`), got.State)

	latest, err := store.Latest(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), latest.Sequence, "sequence order is numeric, not lexical")

	list, err := store.List(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, list, 11)
	assert.Equal(t, int64(1), list[0].Sequence)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Latest(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// flakyBlobStore fails Put for keys with the given prefix until healed.
type flakyBlobStore struct {
	*memory.BlobStore
	failPrefix string
	failing    bool
}

func (f *flakyBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if f.failing && strings.HasPrefix(key, f.failPrefix) {
		return errors.New("connection reset")
	}
	return f.BlobStore.Put(ctx, key, data)
}

func TestCheckpointStore_Save_RetryAfterPartialWrite(t *testing.T) {
	ctx := context.Background()
	blobs := &flakyBlobStore{BlobStore: memory.NewBlobStore(), failPrefix: checkpointIDs, failing: true}
	store := NewCheckpointStore(blobs)
	cp := newCheckpoint("cp-1", "exec-1", 1)

	require.Error(t, store.Save(ctx, cp))
	_, err := store.Get(ctx, "cp-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	blobs.failing = false
	require.NoError(t, store.Save(ctx, cp))

	got, err := store.Get(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Sequence)

	// Once complete, saving again is a duplicate.
	assert.ErrorIs(t, store.Save(ctx, cp), domain.ErrAlreadyExists)

	// A different checkpoint cannot claim the half-written sequence.
	blobs.failing = true
	require.Error(t, store.Save(ctx, newCheckpoint("cp-2", "exec-1", 2)))
	blobs.failing = false
	assert.ErrorIs(t, store.Save(ctx, newCheckpoint("cp-3", "exec-1", 2)), domain.ErrAlreadyExists)
}

func TestCheckpointStore_Save_Rejects(t *testing.T) {
	ctx := context.Background()
	store := NewCheckpointStore(memory.NewBlobStore())

	require.NoError(t, store.Save(ctx, newCheckpoint("cp-1", "exec-1", 1)))
	assert.ErrorIs(t, store.Save(ctx, newCheckpoint("cp-1", "exec-1", 2)), domain.ErrAlreadyExists)
	assert.ErrorIs(t, store.Save(ctx, newCheckpoint("cp-2", "exec-1", 1)), domain.ErrAlreadyExists)
	assert.ErrorIs(t, store.Save(ctx, newCheckpoint("cp-3", "a/b", 1)), domain.ErrValidation)
	assert.ErrorIs(t, store.Save(ctx, &domain.Checkpoint{}), domain.ErrValidation)
}

func TestCheckpointStore_ExecutionsAndDelete(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	store := NewCheckpointStore(blobs)

	require.NoError(t, store.Save(ctx, newCheckpoint("1", "a-b", 1)))
	require.NoError(t, store.Save(ctx, newCheckpoint("2", "a", 1)))
	require.NoError(t, store.Save(ctx, newCheckpoint("3", "a", 2)))

	ids, err := store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a-b"}, ids)

	require.NoError(t, store.DeleteExecution(ctx, "a"))
	ids, err = store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b"}, ids)

	_, err = store.Get(ctx, "2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	keys, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestContentStore_PutOpenListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewContentStore(memory.NewBlobStore())

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &domain.Content{
		ID:        "docs/guide.md",
		Modality:  domain.ModalityText,
		Data:      []byte("guide"),
		Metadata:  map[string]string{"path": "docs/guide.md"},
		CreatedAt: created,
	}))
	require.NoError(t, store.Put(ctx, &domain.Content{
		ID:       "docs/guide.md",
		Modality: domain.ModalityText,
		Data:     []byte("guide v2"),
	}))
	require.NoError(t, store.Put(ctx, &domain.Content{ID: "a b.csv", Modality: domain.ModalityStructured}))

	got, err := store.Open(ctx, "docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "guide v2", string(got.Data))
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.Metadata)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a b.csv", "docs/guide.md"}, ids)

	require.NoError(t, store.Delete(ctx, "a b.csv"))
	_, err = store.Open(ctx, "a b.csv")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, store.Put(ctx, &domain.Content{ID: "x", Modality: "video"}), domain.ErrUnsupportedType)
}
