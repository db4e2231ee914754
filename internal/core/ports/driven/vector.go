package driven

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// VectorIndex stores vectors with metadata and answers k-nearest-neighbour queries.
//
// Adds are pending until Commit. Removes apply immediately, so a search
// may miss an uncommitted add but never returns a removed item. Mutations
// are serialised per instance; searches may run concurrently with each other
// and with an in-progress write.
type VectorIndex interface {
	// Strategy returns the implementation strategy.
	Strategy() domain.IndexStrategy

	// Dimension returns the fixed vector length.
	Dimension() int

	// Metric returns the distance metric.
	Metric() domain.Metric

	// Len returns the number of committed, live items.
	Len() int

	// Add stages an entry and returns its item ID. An empty entry ID is assigned.
	// Vectors of the wrong dimension fail with domain.ErrValidation.
	Add(ctx context.Context, entry domain.IndexEntry) (string, error)

	// Remove deletes an item. Unknown IDs fail with domain.ErrNotFound.
	Remove(ctx context.Context, id string) error

	// Update replaces an item's vector, keeping its ID and metadata.
	// The new vector is visible after Commit.
	Update(ctx context.Context, id string, vector []float32) error

	// Search returns up to k hits ordered by ascending distance, ties by ascending ID.
	Search(ctx context.Context, query []float32, k int, filter *domain.MetadataFilter) ([]domain.SearchHit, error)

	// Commit makes pending adds visible to search.
	Commit(ctx context.Context) error

	// MarshalBinary serialises the strategy's committed structure.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary restores a structure written by MarshalBinary.
	UnmarshalBinary(data []byte) error

	// Close releases resources.
	Close() error
}

// IndexFactory builds vector indexes and converts them to and from
// their self-describing file format.
type IndexFactory interface {
	// New creates an empty index. Unknown strategies fail with domain.ErrUnsupportedType.
	New(cfg domain.IndexConfig) (VectorIndex, error)

	// Encode serialises the committed contents of idx with a versioned header.
	Encode(idx VectorIndex) ([]byte, error)

	// Decode rebuilds an index from Encode output. Header and body
	// disagreements fail with domain.ErrIndexConsistency.
	Decode(data []byte) (VectorIndex, error)
}
