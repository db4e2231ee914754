package blobkv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

const contentPrefix = "contents/"

// ContentStore implements driven.ContentStore over a BlobStore.
type ContentStore struct {
	blobs driven.BlobStore
}

var _ driven.ContentStore = (*ContentStore)(nil)

// NewContentStore wraps a blob store.
func NewContentStore(blobs driven.BlobStore) *ContentStore {
	return &ContentStore{blobs: blobs}
}

// storedContent is the JSON body of a content blob.
type storedContent struct {
	ID        string            `json:"id"`
	Modality  domain.Modality   `json:"modality"`
	Data      []byte            `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func contentKey(id string) string {
	return contentPrefix + url.PathEscape(id) + ".json"
}

// Put stores or replaces content. CreatedAt survives replacement.
func (s *ContentStore) Put(ctx context.Context, c *domain.Content) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: content with an id is required", domain.ErrValidation)
	}
	if !c.Modality.IsValid() {
		return fmt.Errorf("%w: modality %q", domain.ErrUnsupportedType, c.Modality)
	}

	now := time.Now().UTC()
	sc := storedContent{
		ID:        c.ID,
		Modality:  c.Modality,
		Data:      c.Data,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if prev, err := s.Open(ctx, c.ID); err == nil {
		sc.CreatedAt = prev.CreatedAt
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	if sc.UpdatedAt.IsZero() {
		sc.UpdatedAt = now
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshalling content %s: %w", c.ID, err)
	}
	return s.blobs.Put(ctx, contentKey(c.ID), data)
}

// Open returns the content with the given ID.
func (s *ContentStore) Open(ctx context.Context, id string) (*domain.Content, error) {
	data, err := s.blobs.Get(ctx, contentKey(id))
	if err != nil {
		return nil, err
	}
	var sc storedContent
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding content %s: %w", id, err)
	}
	return &domain.Content{
		ID:        sc.ID,
		Modality:  sc.Modality,
		Data:      sc.Data,
		Metadata:  sc.Metadata,
		CreatedAt: sc.CreatedAt,
		UpdatedAt: sc.UpdatedAt,
	}, nil
}

// Delete removes content.
func (s *ContentStore) Delete(ctx context.Context, id string) error {
	return s.blobs.Delete(ctx, contentKey(id))
}

// List returns every content ID in ascending order.
func (s *ContentStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.blobs.List(ctx, contentPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id, err := url.PathUnescape(strings.TrimSuffix(strings.TrimPrefix(key, contentPrefix), ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
