package domain

import "time"

// EmbeddingKind identifies what an embedding represents.
type EmbeddingKind string

// Embedding kinds. A single Content may carry several.
const (
	// EmbeddingContent covers a whole Content.
	EmbeddingContent EmbeddingKind = "content"

	// EmbeddingChunk covers a single ContentChunk.
	EmbeddingChunk EmbeddingKind = "chunk"

	// EmbeddingFeature is the structural feature vector alone.
	EmbeddingFeature EmbeddingKind = "feature"

	// EmbeddingQuery is a search-time vector built from query text.
	EmbeddingQuery EmbeddingKind = "query"
)

// IsValid returns true if the kind is recognised.
func (k EmbeddingKind) IsValid() bool {
	switch k {
	case EmbeddingContent, EmbeddingChunk, EmbeddingFeature, EmbeddingQuery:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k EmbeddingKind) String() string {
	return string(k)
}

// Embedding is an immutable vector representation of content.
// Updates create a new Embedding; the old id is invalidated in the index.
type Embedding struct {
	// ID uniquely identifies the embedding.
	ID string `json:"id"`

	// ContentID is the source content, empty for query embeddings.
	ContentID string `json:"content_id,omitempty"`

	// Kind is the embedding kind.
	Kind EmbeddingKind `json:"kind"`

	// Vector holds the fused values.
	Vector []float32 `json:"vector"`

	// Dimension is len(Vector).
	Dimension int `json:"dimension"`

	// Degraded is true when the semantic side could not be produced
	// and Vector carries only the structural contribution.
	Degraded bool `json:"degraded,omitempty"`

	// DegradedReason records why the semantic side is missing.
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Metadata is copied into the index entry.
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is when the embedding was generated.
	CreatedAt time.Time `json:"created_at"`
}

// EmbeddingInput is what the generator consumes: a whole Content or one chunk of it.
type EmbeddingInput struct {
	ContentID string
	Modality  Modality
	Data      []byte
	Metadata  map[string]string
}

// FusionStrategy selects how the structural and semantic vectors combine.
type FusionStrategy string

// Fusion strategies.
const (
	// FusionWeightedAverage L2-normalises both vectors and takes a weighted sum.
	FusionWeightedAverage FusionStrategy = "weighted_average"

	// FusionConcatenate places the structural half before the semantic half.
	FusionConcatenate FusionStrategy = "concatenate"

	// FusionProjection projects the concatenation back to the target dimension.
	FusionProjection FusionStrategy = "projection"
)

// IsValid returns true if the fusion strategy is recognised.
func (f FusionStrategy) IsValid() bool {
	switch f {
	case FusionWeightedAverage, FusionConcatenate, FusionProjection:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the strategy.
func (f FusionStrategy) Description() string {
	switch f {
	case FusionWeightedAverage:
		return "Weighted average (fixed dimension)"
	case FusionConcatenate:
		return "Concatenation (half structural, half semantic)"
	case FusionProjection:
		return "Projection (seeded random projection)"
	default:
		return unknownDescription
	}
}

// GeneratorConfig configures the embedding fusion generator.
type GeneratorConfig struct {
	// Dimension is the length of every produced vector.
	Dimension int

	// Fusion selects the combining strategy.
	Fusion FusionStrategy

	// StructuralWeight and SemanticWeight apply to weighted averaging.
	StructuralWeight float32
	SemanticWeight   float32

	// OracleTimeout bounds each oracle attempt.
	OracleTimeout time.Duration

	// PromptBudget caps how many content bytes are placed in a prompt.
	PromptBudget int

	// CacheSize is the number of non-degraded embeddings kept in memory.
	// Zero disables the cache.
	CacheSize int

	// ProjectionSeed seeds the projection matrix.
	ProjectionSeed uint64
}

// Generator defaults.
const (
	DefaultDimension      = 384
	DefaultOracleTimeout  = 30 * time.Second
	DefaultPromptBudget   = 4096
	DefaultEmbedCacheSize = 10000
)

// DefaultGeneratorConfig returns the default generator configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Dimension:        DefaultDimension,
		Fusion:           FusionWeightedAverage,
		StructuralWeight: 0.5,
		SemanticWeight:   0.5,
		OracleTimeout:    DefaultOracleTimeout,
		PromptBudget:     DefaultPromptBudget,
		CacheSize:        DefaultEmbedCacheSize,
		ProjectionSeed:   42,
	}
}
