package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func TestContentStore_PutOpen(t *testing.T) {
	ctx := context.Background()
	store := NewContentStore()
	c := &domain.Content{
		ID:       "readme",
		Modality: domain.ModalityText,
		Data:     []byte("hello world"),
		Metadata: map[string]string{"path": "README.md"},
	}
	require.NoError(t, store.Put(ctx, c))
	c.Data[0] = 'J'

	got, err := store.Open(ctx, "readme")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got.Data))
	assert.Equal(t, "README.md", got.Metadata["path"])

	_, err = store.Open(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContentStore_Put_RequiresID(t *testing.T) {
	err := NewContentStore().Put(context.Background(), &domain.Content{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestContentStore_ListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewContentStore()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, store.Put(ctx, &domain.Content{ID: id, Modality: domain.ModalityText}))
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, store.Delete(ctx, "b"))
	require.NoError(t, store.Delete(ctx, "missing"))
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)
}
