package driven

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// ContentSource resolves content by ID for built-in steps.
type ContentSource interface {
	// Open returns the content with the given ID, or domain.ErrNotFound.
	Open(ctx context.Context, id string) (*domain.Content, error)
}

// ContentStore is a ContentSource that ingested content is written to,
// so that a resumed execution in a later process can reopen it.
type ContentStore interface {
	ContentSource

	// Put stores or replaces content.
	Put(ctx context.Context, c *domain.Content) error

	// Delete removes content. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored content ID in ascending order.
	List(ctx context.Context) ([]string, error)
}
