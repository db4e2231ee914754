package driving

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// SearchService answers free-text queries against named indexes.
type SearchService interface {
	// Search embeds the query text, searches the index and hydrates snippets.
	// An index that is not open is loaded from its default blob key.
	Search(ctx context.Context, q domain.Query) (*domain.SearchResponse, error)
}
