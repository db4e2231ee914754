package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func newTestIndexService(t *testing.T) *IndexService {
	t.Helper()
	svc := NewIndexService(vectorindex.Factory{}, memory.NewBlobStore())
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func addCommitted(t *testing.T, svc *IndexService, name string, entries ...domain.IndexEntry) {
	t.Helper()
	ctx := context.Background()
	for _, e := range entries {
		_, err := svc.Add(ctx, name, e)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Commit(ctx, name))
}

func TestIndexService_Create(t *testing.T) {
	svc := newTestIndexService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "docs", domain.IndexConfig{Strategy: domain.IndexFlat, Dimension: 2}))
	assert.ErrorIs(t, svc.Create(ctx, "docs", domain.IndexConfig{Strategy: domain.IndexFlat, Dimension: 2}), domain.ErrAlreadyExists)
	assert.ErrorIs(t, svc.Create(ctx, "", domain.IndexConfig{Strategy: domain.IndexFlat, Dimension: 2}), domain.ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, "bad", domain.IndexConfig{Strategy: "ivf", Dimension: 2}), domain.ErrUnsupportedType)
	assert.ErrorIs(t, svc.Create(ctx, "bad", domain.IndexConfig{Strategy: domain.IndexFlat}), domain.ErrValidation)

	stats, err := svc.Stats("docs")
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{
		Name:      "docs",
		Strategy:  domain.IndexFlat,
		Metric:    domain.MetricCosine,
		Dimension: 2,
	}, stats)
	assert.Equal(t, []string{"docs"}, svc.Names())
}

func TestIndexService_SearchMaxDistanceAndDefaultK(t *testing.T) {
	svc := newTestIndexService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "pts", domain.IndexConfig{
		Strategy: domain.IndexFlat, Dimension: 2, Metric: domain.MetricEuclidean,
	}))
	addCommitted(t, svc, "pts",
		domain.IndexEntry{ID: "near", Vector: []float32{1, 0}},
		domain.IndexEntry{ID: "mid", Vector: []float32{3, 0}},
		domain.IndexEntry{ID: "far", Vector: []float32{10, 0}},
	)

	hits, err := svc.Search(ctx, "pts", []float32{0, 0}, domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 3)

	hits, err = svc.Search(ctx, "pts", []float32{0, 0}, domain.SearchOptions{K: 3, MaxDistance: 5})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)

	_, err = svc.Search(ctx, "missing", []float32{0, 0}, domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexService_AddEmbeddingUpserts(t *testing.T) {
	svc := newTestIndexService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "emb", domain.IndexConfig{Strategy: domain.IndexHybrid, Dimension: 2}))

	emb := &domain.Embedding{
		ID:        "e1",
		ContentID: "readme.md",
		Kind:      domain.EmbeddingChunk,
		Vector:    []float32{1, 0},
		Degraded:  true,
	}
	_, err := svc.AddEmbedding(ctx, "emb", emb)
	require.NoError(t, err)
	require.NoError(t, svc.Commit(ctx, "emb"))

	emb.Vector = []float32{0, 1}
	emb.Degraded = false
	id, err := svc.AddEmbedding(ctx, "emb", emb)
	require.NoError(t, err)
	assert.Equal(t, "e1", id)
	require.NoError(t, svc.Commit(ctx, "emb"))

	hits, err := svc.SearchEmbedding(ctx, "emb", &domain.Embedding{Vector: []float32{0, 1}}, domain.SearchOptions{
		K:      1,
		Filter: &domain.MetadataFilter{Equals: map[string]string{"content_id": "readme.md"}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "e1", hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.Equal(t, "false", hits[0].Metadata["degraded"])
	assert.Equal(t, "chunk", hits[0].Metadata["kind"])

	stats, err := svc.Stats("emb")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)

	_, err = svc.AddEmbedding(ctx, "emb", &domain.Embedding{Vector: []float32{1, 1}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIndexService_SaveLoad(t *testing.T) {
	svc := newTestIndexService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "src", domain.IndexConfig{Strategy: domain.IndexHNSW, Dimension: 3}))
	addCommitted(t, svc, "src",
		domain.IndexEntry{ID: "a", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"lang": "go"}},
		domain.IndexEntry{ID: "b", Vector: []float32{0, 1, 0}},
		domain.IndexEntry{ID: "c", Vector: []float32{0, 0, 1}},
	)
	require.NoError(t, svc.Save(ctx, "src", "indexes/src.bidx"))

	require.NoError(t, svc.Load(ctx, "copy", "indexes/src.bidx"))
	stats, err := svc.Stats("copy")
	require.NoError(t, err)
	assert.Equal(t, domain.IndexHNSW, stats.Strategy)
	assert.Equal(t, 3, stats.Count)

	hits, err := svc.Search(ctx, "copy", []float32{0.9, 0.1, 0}, domain.SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "go", hits[0].Metadata["lang"])

	// Loading over an existing index replaces it.
	require.NoError(t, svc.Load(ctx, "src", "indexes/src.bidx"))
	assert.Equal(t, []string{"copy", "src"}, svc.Names())

	err = svc.Load(ctx, "other", "indexes/missing.bidx")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexService_LoadDimensionMismatch(t *testing.T) {
	svc := newTestIndexService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "three", domain.IndexConfig{Strategy: domain.IndexFlat, Dimension: 3}))
	addCommitted(t, svc, "three", domain.IndexEntry{ID: "a", Vector: []float32{1, 0, 0}})
	require.NoError(t, svc.Save(ctx, "three", "three.bidx"))

	require.NoError(t, svc.Create(ctx, "two", domain.IndexConfig{Strategy: domain.IndexFlat, Dimension: 2}))
	err := svc.Load(ctx, "two", "three.bidx")
	assert.ErrorIs(t, err, domain.ErrIndexConsistency)

	stats, err := svc.Stats("two")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Dimension)
}

func TestIndexService_WithoutBlobStore(t *testing.T) {
	svc := NewIndexService(vectorindex.Factory{}, nil)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "x", domain.IndexConfig{Strategy: domain.IndexFlat, Dimension: 2}))

	assert.ErrorIs(t, svc.Save(ctx, "x", "k"), domain.ErrValidation)
	assert.ErrorIs(t, svc.Load(ctx, "x", "k"), domain.ErrValidation)
}

func TestIndexService_RemoveUpdateDrop(t *testing.T) {
	svc := newTestIndexService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "x", domain.IndexConfig{Strategy: domain.IndexFlat, Dimension: 2, Metric: domain.MetricEuclidean}))
	addCommitted(t, svc, "x",
		domain.IndexEntry{ID: "a", Vector: []float32{0, 0}},
		domain.IndexEntry{ID: "b", Vector: []float32{5, 5}},
	)

	require.NoError(t, svc.Remove(ctx, "x", "a"))
	assert.ErrorIs(t, svc.Remove(ctx, "x", "a"), domain.ErrNotFound)

	require.NoError(t, svc.Update(ctx, "x", "b", []float32{0, 1}))
	require.NoError(t, svc.Commit(ctx, "x"))
	hits, err := svc.Search(ctx, "x", []float32{0, 0}, domain.SearchOptions{K: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1, hits[0].Distance, 1e-6)

	require.NoError(t, svc.Drop("x"))
	assert.ErrorIs(t, svc.Drop("x"), domain.ErrNotFound)
	assert.Empty(t, svc.Names())
}
