package driving

import (
	"iter"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// Chunker splits content into bounded, possibly overlapping chunks.
type Chunker interface {
	// Chunk validates the strategy and returns a lazy, finite, restartable
	// sequence of chunks. Empty content yields an empty sequence.
	Chunk(content *domain.Content, strategy domain.ChunkStrategy) (iter.Seq[domain.ContentChunk], error)
}
