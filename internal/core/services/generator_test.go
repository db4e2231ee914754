package services

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func testGeneratorConfig() domain.GeneratorConfig {
	cfg := domain.DefaultGeneratorConfig()
	cfg.Dimension = 64
	cfg.OracleTimeout = 100 * time.Millisecond
	return cfg
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

var codeInput = domain.EmbeddingInput{
	ContentID: "main.go",
	Modality:  domain.ModalityCode,
	Data:      []byte("package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"),
}

func TestGenerator_Generate_Fused(t *testing.T) {
	oracle := &mockOracle{}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{dims: 32})
	require.NoError(t, err)

	emb, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)

	assert.False(t, emb.Degraded)
	assert.Equal(t, 64, emb.Dimension)
	assert.Len(t, emb.Vector, 64)
	assert.InDelta(t, 1.0, norm(emb.Vector), 1e-4)
	assert.Equal(t, "main.go", emb.ContentID)
	assert.Equal(t, domain.EmbeddingContent, emb.Kind)
	assert.NotEmpty(t, emb.ID)
	assert.Equal(t, 1, oracle.callCount())

	structuralOnly := g.fusion.fuse(structuralVector(codeInput, 64), nil)
	assert.NotEqual(t, structuralOnly, emb.Vector)
}

func TestGenerator_Generate_OracleFailureDegrades(t *testing.T) {
	oracle := &mockOracle{failWhen: func(int, string) bool { return true }}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{})
	require.NoError(t, err)

	emb, err := g.Generate(context.Background(), codeInput, domain.EmbeddingChunk)
	require.NoError(t, err)

	assert.True(t, emb.Degraded)
	assert.Contains(t, emb.DegradedReason, domain.ErrOracle.Error())
	assert.Equal(t, 2, oracle.callCount(), "one retry after the first failure")
	assert.Len(t, emb.Vector, 64)
	expected := structuralVector(codeInput, 64)
	for i := range expected {
		assert.InDelta(t, expected[i], emb.Vector[i], 1e-6)
	}
}

func TestGenerator_Generate_RetrySucceeds(t *testing.T) {
	oracle := &mockOracle{failWhen: func(call int, _ string) bool { return call == 1 }}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{})
	require.NoError(t, err)

	emb, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)

	assert.False(t, emb.Degraded)
	assert.Equal(t, 2, oracle.callCount())
}

func TestGenerator_Generate_OracleTimeoutIsBounded(t *testing.T) {
	oracle := &mockOracle{block: true}
	cfg := testGeneratorConfig()
	cfg.OracleTimeout = 20 * time.Millisecond
	g, err := NewGenerator(cfg, oracle, &mockEmbedder{})
	require.NoError(t, err)

	start := time.Now()
	emb, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)

	assert.True(t, emb.Degraded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerator_Generate_NoOracle(t *testing.T) {
	g, err := NewGenerator(testGeneratorConfig(), nil, nil)
	require.NoError(t, err)

	emb, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)

	assert.True(t, emb.Degraded)
	assert.Contains(t, emb.DegradedReason, domain.ErrOracleUnavailable.Error())
	assert.Len(t, emb.Vector, 64)
}

func TestGenerator_Generate_FeatureKindSkipsOracle(t *testing.T) {
	oracle := &mockOracle{}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{})
	require.NoError(t, err)

	emb, err := g.Generate(context.Background(), codeInput, domain.EmbeddingFeature)
	require.NoError(t, err)

	assert.False(t, emb.Degraded)
	assert.Equal(t, 0, oracle.callCount())
	assert.Len(t, emb.Vector, 64)
}

func TestGenerator_Generate_Validation(t *testing.T) {
	g, err := NewGenerator(testGeneratorConfig(), nil, nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), codeInput, domain.EmbeddingQuery)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = g.Generate(context.Background(), codeInput, "sentence")
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad := codeInput
	bad.Modality = "genome"
	_, err = g.Generate(context.Background(), bad, domain.EmbeddingContent)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerator_Generate_CacheHit(t *testing.T) {
	oracle := &mockOracle{}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{})
	require.NoError(t, err)

	first, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)

	assert.Equal(t, 1, oracle.callCount())
	assert.Equal(t, first.Vector, second.Vector)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestGenerator_Generate_DegradedNotCached(t *testing.T) {
	oracle := &mockOracle{failWhen: func(call int, _ string) bool { return call <= 2 }}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{})
	require.NoError(t, err)

	first, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)

	assert.True(t, first.Degraded)
	assert.False(t, second.Degraded)
}

func TestGenerator_Concatenate_DegradedHalfIsZero(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.Fusion = domain.FusionConcatenate
	g, err := NewGenerator(cfg, nil, nil)
	require.NoError(t, err)

	emb, err := g.Generate(context.Background(), codeInput, domain.EmbeddingChunk)
	require.NoError(t, err)

	require.Len(t, emb.Vector, 64)
	for _, v := range emb.Vector[32:] {
		assert.Zero(t, v)
	}
	assert.InDelta(t, 1.0, norm(emb.Vector[:32]), 1e-4)
}

func TestGenerator_Projection_Deterministic(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.Fusion = domain.FusionProjection
	cfg.CacheSize = 0

	g1, err := NewGenerator(cfg, &mockOracle{}, &mockEmbedder{})
	require.NoError(t, err)
	g2, err := NewGenerator(cfg, &mockOracle{}, &mockEmbedder{})
	require.NoError(t, err)

	a, err := g1.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)
	b, err := g2.Generate(context.Background(), codeInput, domain.EmbeddingContent)
	require.NoError(t, err)

	assert.Len(t, a.Vector, 64)
	assert.InDelta(t, 1.0, norm(a.Vector), 1e-4)
	assert.Equal(t, a.Vector, b.Vector)
}

func TestGenerator_GenerateQuery(t *testing.T) {
	oracle := &mockOracle{}
	store := &mockPromptStore{templates: map[string]string{
		"describe_query": "QUERY %s",
	}}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{}, WithPromptStore(store))
	require.NoError(t, err)

	emb, err := g.GenerateQuery(context.Background(), "how are checkpoints written", "")
	require.NoError(t, err)

	assert.Equal(t, domain.EmbeddingQuery, emb.Kind)
	assert.Empty(t, emb.ContentID)
	assert.Len(t, emb.Vector, 64)
	require.Len(t, oracle.prompts, 1)
	assert.True(t, strings.HasPrefix(oracle.prompts[0], "QUERY how are"))

	_, err = g.GenerateQuery(context.Background(), "   ", domain.ModalityText)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerator_PromptBudget(t *testing.T) {
	oracle := &mockOracle{}
	cfg := testGeneratorConfig()
	cfg.PromptBudget = 10
	g, err := NewGenerator(cfg, oracle, &mockEmbedder{}, WithPromptStore(&mockPromptStore{
		templates: map[string]string{"describe_text": "%s"},
	}))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), domain.EmbeddingInput{
		Modality: domain.ModalityText,
		Data:     []byte("héllo wörld and much more text"),
	}, domain.EmbeddingContent)
	require.NoError(t, err)

	require.Len(t, oracle.prompts, 1)
	assert.LessOrEqual(t, len(oracle.prompts[0]), 10)
	assert.True(t, strings.HasPrefix(oracle.prompts[0], "héllo w"))
}

func TestGenerator_PromptKeepsLiteralPercent(t *testing.T) {
	oracle := &mockOracle{}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{}, WithPromptStore(&mockPromptStore{
		templates: map[string]string{"describe_text": "Be 100% literal about: %s"},
	}))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), domain.EmbeddingInput{
		Modality: domain.ModalityText,
		Data:     []byte("50% off %d"),
	}, domain.EmbeddingContent)
	require.NoError(t, err)

	require.Len(t, oracle.prompts, 1)
	assert.Equal(t, "Be 100% literal about: 50% off %d", oracle.prompts[0])
}

func TestGenerator_PromptWithoutSinglePlaceholderFallsBack(t *testing.T) {
	oracle := &mockOracle{}
	g, err := NewGenerator(testGeneratorConfig(), oracle, &mockEmbedder{}, WithPromptStore(&mockPromptStore{
		templates: map[string]string{"describe_text": "%s and %s"},
	}))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), domain.EmbeddingInput{
		Modality: domain.ModalityText,
		Data:     []byte("payload"),
	}, domain.EmbeddingContent)
	require.NoError(t, err)

	require.Len(t, oracle.prompts, 1)
	assert.True(t, strings.HasPrefix(oracle.prompts[0], "Describe the meaning and purpose of the following text"))
	assert.True(t, strings.HasSuffix(oracle.prompts[0], "\n\npayload"))
}

func TestNewGenerator_InvalidConfig(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.Dimension = 0
	_, err := NewGenerator(cfg, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	cfg = testGeneratorConfig()
	cfg.Fusion = "attention"
	_, err = NewGenerator(cfg, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	cfg = testGeneratorConfig()
	cfg.StructuralWeight, cfg.SemanticWeight = 0, 0
	_, err = NewGenerator(cfg, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStructuralVector_Deterministic(t *testing.T) {
	a := structuralVector(codeInput, 128)
	b := structuralVector(codeInput, 128)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-4)

	text := structuralVector(domain.EmbeddingInput{Modality: domain.ModalityText, Data: codeInput.Data}, 128)
	assert.NotEqual(t, a, text, "modality participates in the features")

	small := structuralVector(codeInput, 3)
	assert.Len(t, small, 3)

	empty := structuralVector(domain.EmbeddingInput{Modality: domain.ModalityStructured}, 16)
	assert.InDelta(t, 1.0, norm(empty), 1e-4)
}
