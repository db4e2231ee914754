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

type searchFixture struct {
	svc      *SearchService
	indexes  *IndexService
	contents *memory.ContentStore
	gen      *Generator
}

// newSearchFixture saves a one-chunk "docs" index and closes it, so the
// search service must load it from blob storage.
func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	ctx := context.Background()

	blobs := memory.NewBlobStore()
	indexes := NewIndexService(vectorindex.Factory{}, blobs)
	t.Cleanup(func() { _ = indexes.Close() })

	gen, err := NewGenerator(testGeneratorConfig(), nil, nil)
	require.NoError(t, err)

	contents := memory.NewContentStore()
	data := []byte("alpha beta gamma\nsecond part here")
	require.NoError(t, contents.Put(ctx, &domain.Content{ID: "a.md", Modality: domain.ModalityText, Data: data}))

	require.NoError(t, indexes.Create(ctx, "docs", domain.IndexConfig{
		Strategy: domain.IndexFlat, Dimension: 64, Metric: domain.MetricCosine,
	}))
	chunk := domain.ContentChunk{ContentID: "a.md", Modality: domain.ModalityText, Index: 1, Offset: 17, Length: 16, Data: data[17:]}
	emb, err := gen.Generate(ctx, chunk.Input(), domain.EmbeddingChunk)
	require.NoError(t, err)
	emb.ID = chunk.ID()
	_, err = indexes.AddEmbedding(ctx, "docs", emb)
	require.NoError(t, err)
	require.NoError(t, indexes.Commit(ctx, "docs"))
	require.NoError(t, indexes.Save(ctx, "docs", domain.IndexKey("docs")))
	require.NoError(t, indexes.Drop("docs"))

	return &searchFixture{
		svc:      NewSearchService(gen, indexes, contents),
		indexes:  indexes,
		contents: contents,
		gen:      gen,
	}
}

func TestSearchService_Search_LoadsAndHydrates(t *testing.T) {
	f := newSearchFixture(t)

	resp, err := f.svc.Search(context.Background(), domain.Query{
		Index:  "docs",
		Text:   "second part",
		Filter: map[string]string{"content_id": "a.md"},
	})
	require.NoError(t, err)

	assert.Contains(t, f.indexes.Names(), "docs")
	assert.True(t, resp.QueryDegraded)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.Equal(t, "a.md#1", r.ID)
	assert.Equal(t, "a.md", r.ContentID)
	assert.Equal(t, "second part here", r.Snippet)
	assert.True(t, r.Degraded)
}

func TestSearchService_Search_FilterExcludes(t *testing.T) {
	f := newSearchFixture(t)

	resp, err := f.svc.Search(context.Background(), domain.Query{
		Index:  "docs",
		Text:   "anything",
		Filter: map[string]string{"content_id": "other.md"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchService_Search_MissingContentLeavesSnippetEmpty(t *testing.T) {
	f := newSearchFixture(t)
	require.NoError(t, f.contents.Delete(context.Background(), "a.md"))

	resp, err := f.svc.Search(context.Background(), domain.Query{Index: "docs", Text: "alpha"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.Results[0].Snippet)
}

func TestSearchService_Search_Errors(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	_, err := f.svc.Search(ctx, domain.Query{Index: "docs", Text: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Search(ctx, domain.Query{Text: "alpha"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Search(ctx, domain.Query{Index: "docs", Text: "alpha", Modality: "audio"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = f.svc.Search(ctx, domain.Query{Index: "missing", Text: "alpha"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuery_ValidateDefaults(t *testing.T) {
	q := domain.Query{Index: "docs", Text: "x"}
	require.NoError(t, q.Validate())
	assert.Equal(t, domain.DefaultQueryLimit, q.Limit)
	assert.Equal(t, domain.ModalityText, q.Modality)
}
