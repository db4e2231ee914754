package driving

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// IndexService manages named vector index instances.
type IndexService interface {
	// Create builds a new, empty index.
	Create(ctx context.Context, name string, cfg domain.IndexConfig) error

	// Add stages an entry and returns its item ID.
	Add(ctx context.Context, name string, entry domain.IndexEntry) (string, error)

	// AddEmbedding stages an embedding keyed by its ID, replacing any previous
	// vector stored under that ID.
	AddEmbedding(ctx context.Context, name string, emb *domain.Embedding) (string, error)

	// Search runs a k-nearest-neighbour query.
	Search(ctx context.Context, name string, query []float32, opts domain.SearchOptions) ([]domain.SearchHit, error)

	// SearchEmbedding runs a query with an embedding's vector.
	SearchEmbedding(ctx context.Context, name string, emb *domain.Embedding, opts domain.SearchOptions) ([]domain.SearchHit, error)

	// Update replaces an item's vector.
	Update(ctx context.Context, name, id string, vector []float32) error

	// Remove deletes an item.
	Remove(ctx context.Context, name, id string) error

	// Commit makes pending adds visible.
	Commit(ctx context.Context, name string) error

	// Save persists a committed index under key.
	Save(ctx context.Context, name, key string) error

	// Load restores an index from key under name.
	// If name already exists, the stored dimension must match it.
	Load(ctx context.Context, name, key string) error

	// Stats describes an index.
	Stats(name string) (domain.IndexStats, error)

	// Names lists index names in ascending order.
	Names() []string

	// Drop closes and forgets an index.
	Drop(name string) error
}
