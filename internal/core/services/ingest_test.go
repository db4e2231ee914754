package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/steps"
)

type ingestFixture struct {
	svc      *IngestService
	engine   *Engine
	indexes  *IndexService
	contents *memory.ContentStore
	blobs    *memory.BlobStore
}

var smallChunks = domain.ChunkStrategy{Size: 32, Overlap: 8, Boundary: domain.BoundaryByte}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	return newIngestFixtureWith(t, nil)
}

func newIngestFixtureWith(t *testing.T, coord *ResourceCoordinator) *ingestFixture {
	t.Helper()

	blobs := memory.NewBlobStore()
	contents := memory.NewContentStore()
	indexes := NewIndexService(vectorindex.Factory{}, blobs)
	t.Cleanup(func() { _ = indexes.Close() })

	gen, err := NewGenerator(testGeneratorConfig(), nil, nil)
	require.NoError(t, err)

	registry := steps.NewRegistry()
	steps.RegisterDefaults(registry, steps.Deps{
		Contents:      contents,
		Chunker:       NewChunker(),
		Generator:     gen,
		Indexes:       indexes,
		ChunkStrategy: domain.DefaultChunkStrategy(domain.ModalityText),
		IndexConfig:   domain.IndexConfig{Strategy: domain.IndexFlat, Metric: domain.MetricCosine},
	})
	var resources driving.ResourceCoordinator
	if coord != nil {
		resources = coord
	}
	engine := NewEngine(testEngineConfig(), registry, memory.NewCheckpointStore(), resources)

	return &ingestFixture{
		svc:      NewIngestService(contents, engine, indexes),
		engine:   engine,
		indexes:  indexes,
		contents: contents,
		blobs:    blobs,
	}
}

func chunkCount(t *testing.T, c *domain.Content, strategy domain.ChunkStrategy) int {
	t.Helper()
	seq, err := NewChunker().Chunk(c, strategy)
	require.NoError(t, err)
	n := 0
	for range seq {
		n++
	}
	return n
}

func TestIngestService_Ingest_IndexesAndSaves(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	notes := &domain.Content{ID: "notes.md", Modality: domain.ModalityText,
		Data: []byte(strings.Repeat("nearest neighbour search over fused vectors. ", 4))}
	code := &domain.Content{ID: "main.go", Modality: domain.ModalityCode,
		Data: []byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")}

	res, err := f.svc.Ingest(ctx, driving.IngestRequest{
		Index:    "docs",
		Contents: []*domain.Content{notes, code},
		Chunk:    &smallChunks,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, res.State.Status)
	assert.Equal(t, "ingest-docs", res.State.PlanID)

	stats, err := f.indexes.Stats("docs")
	require.NoError(t, err)
	assert.Equal(t, chunkCount(t, notes, smallChunks)+chunkCount(t, code, smallChunks), stats.Count)

	_, err = f.blobs.Get(ctx, domain.IndexKey("docs"))
	assert.NoError(t, err)

	stored, err := f.contents.Open(ctx, "main.go")
	require.NoError(t, err)
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestIngestService_Prepare_Rejects(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	valid := &domain.Content{ID: "a", Modality: domain.ModalityText, Data: []byte("a")}

	tests := []struct {
		name string
		req  driving.IngestRequest
		want error
	}{
		{"no index", driving.IngestRequest{Contents: []*domain.Content{valid}}, domain.ErrValidation},
		{"no contents", driving.IngestRequest{Index: "docs"}, domain.ErrValidation},
		{"no id", driving.IngestRequest{Index: "docs", Contents: []*domain.Content{{Modality: domain.ModalityText}}}, domain.ErrValidation},
		{"bad modality", driving.IngestRequest{Index: "docs", Contents: []*domain.Content{{ID: "x", Modality: "audio"}}}, domain.ErrUnsupportedType},
		{"bad chunk", driving.IngestRequest{Index: "docs", Contents: []*domain.Content{valid},
			Chunk: &domain.ChunkStrategy{Size: 8, Overlap: 8}}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Prepare(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIngestService_Prepare_LeavesExecutionPending(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	state, err := f.svc.Prepare(ctx, driving.IngestRequest{
		Index:       "docs",
		Contents:    []*domain.Content{{ID: "a", Modality: domain.ModalityText, Data: []byte("hello there")}},
		Concurrency: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionPending, state.Status)

	embed, ok := state.Plan.Step("embed")
	require.True(t, ok)
	assert.Equal(t, 2, embed.Params["concurrency"])
	assert.Equal(t, []string{"embed"}, state.Plan.Prerequisites("index"))

	res, err := f.engine.Run(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, res.State.Status)
}

func TestIngestService_Reingest_DropsStaleChunks(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	long := &domain.Content{ID: "doc", Modality: domain.ModalityText, Data: []byte(strings.Repeat("abcdefgh", 20))}
	_, err := f.svc.Ingest(ctx, driving.IngestRequest{Index: "docs", Contents: []*domain.Content{long}, Chunk: &smallChunks})
	require.NoError(t, err)
	before, err := f.indexes.Stats("docs")
	require.NoError(t, err)

	short := &domain.Content{ID: "doc", Modality: domain.ModalityText, Data: []byte(strings.Repeat("abcdefgh", 5))}
	_, err = f.svc.Ingest(ctx, driving.IngestRequest{Index: "docs", Contents: []*domain.Content{short}, Chunk: &smallChunks})
	require.NoError(t, err)
	after, err := f.indexes.Stats("docs")
	require.NoError(t, err)

	assert.Equal(t, chunkCount(t, long, smallChunks), before.Count)
	assert.Equal(t, chunkCount(t, short, smallChunks), after.Count)
}

func TestIngestService_Forget(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	a := &domain.Content{ID: "a", Modality: domain.ModalityText, Data: []byte(strings.Repeat("first file ", 10))}
	b := &domain.Content{ID: "b", Modality: domain.ModalityText, Data: []byte("second file")}
	_, err := f.svc.Ingest(ctx, driving.IngestRequest{Index: "docs", Contents: []*domain.Content{a, b}, Chunk: &smallChunks})
	require.NoError(t, err)

	removed, err := f.svc.Forget(ctx, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, chunkCount(t, a, smallChunks), removed)

	_, err = f.contents.Open(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The saved copy reflects the removal.
	require.NoError(t, f.indexes.Drop("docs"))
	require.NoError(t, f.indexes.Load(ctx, "docs", domain.IndexKey("docs")))
	stats, err := f.indexes.Stats("docs")
	require.NoError(t, err)
	assert.Equal(t, chunkCount(t, b, smallChunks), stats.Count)
}

func TestIngestService_Forget_MissingIndex(t *testing.T) {
	f := newIngestFixture(t)

	removed, err := f.svc.Forget(context.Background(), "nothing", "a")
	assert.NoError(t, err)
	assert.Zero(t, removed)

	_, err = f.svc.Forget(context.Background(), "", "a")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIngestService_Ingest_StepsWaitForCPU(t *testing.T) {
	ctx := context.Background()
	coord, err := NewResourceCoordinator(domain.ResourceConfig{
		Capacities: map[domain.ResourceKind]int64{
			domain.ResourceCPU:      1,
			domain.ResourceMemoryMB: 8,
		},
		AcquireTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	f := newIngestFixtureWith(t, coord)

	state, err := f.svc.Prepare(ctx, driving.IngestRequest{
		Index:    "docs",
		Contents: []*domain.Content{{ID: "a", Modality: domain.ModalityText, Data: []byte("bounded by the coordinator")}},
		Chunk:    &smallChunks,
	})
	require.NoError(t, err)

	held, err := coord.Acquire(ctx, domain.Requirements{domain.ResourceCPU: 1})
	require.NoError(t, err)

	var (
		res    *domain.RunResult
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, runErr = f.engine.Run(ctx, state.ExecutionID)
	}()

	require.Eventually(t, func() bool {
		st, err := f.engine.Status(ctx, state.ExecutionID)
		if err != nil {
			return false
		}
		for _, e := range eventsOf(st.Events, domain.EventStepDeferred) {
			if e.StepID == "chunk" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	st, err := f.engine.Status(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Steps["chunk"].Attempts)
	held.Release()
	<-done

	require.NoError(t, runErr)
	assert.Equal(t, domain.ExecutionCompleted, res.State.Status)
	assert.Zero(t, coord.Snapshot()[domain.ResourceCPU].InUse)
	assert.Zero(t, coord.Snapshot()[domain.ResourceMemoryMB].InUse)
}
