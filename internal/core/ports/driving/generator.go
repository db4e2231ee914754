package driving

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// EmbeddingGenerator produces fused structural and semantic embeddings.
// Oracle failures never surface as errors: the embedding is returned
// structural-only with Degraded set.
type EmbeddingGenerator interface {
	// Generate embeds a whole content or a single chunk.
	Generate(ctx context.Context, in domain.EmbeddingInput, kind domain.EmbeddingKind) (*domain.Embedding, error)

	// GenerateQuery embeds search-time query text.
	GenerateQuery(ctx context.Context, text string, modality domain.Modality) (*domain.Embedding, error)

	// Dimension returns the length of every produced vector.
	Dimension() int
}
