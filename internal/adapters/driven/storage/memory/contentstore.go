package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu       sync.RWMutex
	contents map[string]domain.Content
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		contents: make(map[string]domain.Content),
	}
}

// Put stores or replaces content.
func (s *ContentStore) Put(_ context.Context, c *domain.Content) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: content with an id is required", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *c
	stored.Data = slices.Clone(c.Data)
	stored.Metadata = maps.Clone(c.Metadata)
	s.contents[c.ID] = stored
	return nil
}

// Open returns the content with the given ID.
func (s *ContentStore) Open(_ context.Context, id string) (*domain.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.Data = slices.Clone(c.Data)
	c.Metadata = maps.Clone(c.Metadata)
	return &c, nil
}

// Delete removes content.
func (s *ContentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contents, id)
	return nil
}

// List returns every content ID in ascending order.
func (s *ContentStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.contents)), nil
}
