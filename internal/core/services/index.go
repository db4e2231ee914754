package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// DefaultSearchK is used when SearchOptions.K is not positive.
const DefaultSearchK = 10

// IndexService manages named vector index instances.
type IndexService struct {
	factory driven.IndexFactory
	blobs   driven.BlobStore

	mu      sync.RWMutex
	indexes map[string]driven.VectorIndex
}

// NewIndexService creates a new index service.
// The blob store is optional; without it Save and Load fail.
func NewIndexService(factory driven.IndexFactory, blobs driven.BlobStore) *IndexService {
	return &IndexService{
		factory: factory,
		blobs:   blobs,
		indexes: make(map[string]driven.VectorIndex),
	}
}

// Create builds a new, empty index.
func (s *IndexService) Create(_ context.Context, name string, cfg domain.IndexConfig) error {
	if name == "" {
		return fmt.Errorf("%w: index name is required", domain.ErrValidation)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; ok {
		return fmt.Errorf("%w: index %s", domain.ErrAlreadyExists, name)
	}

	idx, err := s.factory.New(cfg)
	if err != nil {
		return err
	}
	s.indexes[name] = idx
	logger.Debug("Created %s index %q (dim=%d, metric=%s)", cfg.Strategy, name, cfg.Dimension, cfg.Metric)
	return nil
}

// Get returns the named index handle.
func (s *IndexService) Get(name string) (driven.VectorIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	return idx, nil
}

// Add stages an entry and returns its item ID.
func (s *IndexService) Add(ctx context.Context, name string, entry domain.IndexEntry) (string, error) {
	idx, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return idx.Add(ctx, entry)
}

// AddEmbedding stages an embedding keyed by its ID. A previous item with
// the same ID is removed first.
func (s *IndexService) AddEmbedding(ctx context.Context, name string, emb *domain.Embedding) (string, error) {
	if emb == nil || emb.ID == "" {
		return "", fmt.Errorf("%w: embedding with an id is required", domain.ErrValidation)
	}
	idx, err := s.Get(name)
	if err != nil {
		return "", err
	}

	if err := idx.Remove(ctx, emb.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	return idx.Add(ctx, domain.IndexEntry{
		ID:       emb.ID,
		Vector:   emb.Vector,
		Metadata: embeddingMetadata(emb),
	})
}

func embeddingMetadata(emb *domain.Embedding) map[string]string {
	md := make(map[string]string, len(emb.Metadata)+3)
	for k, v := range emb.Metadata {
		md[k] = v
	}
	md["content_id"] = emb.ContentID
	md["kind"] = string(emb.Kind)
	md["degraded"] = strconv.FormatBool(emb.Degraded)
	return md
}

// Search runs a k-nearest-neighbour query.
func (s *IndexService) Search(
	ctx context.Context,
	name string,
	query []float32,
	opts domain.SearchOptions,
) ([]domain.SearchHit, error) {
	idx, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	k := opts.K
	if k <= 0 {
		k = DefaultSearchK
	}
	hits, err := idx.Search(ctx, query, k, opts.Filter)
	if err != nil {
		return nil, err
	}

	if opts.MaxDistance > 0 {
		kept := hits[:0]
		for _, h := range hits {
			if h.Distance <= opts.MaxDistance {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	logger.Debug("Index %q returned %d hits (k=%d)", name, len(hits), k)
	return hits, nil
}

// SearchEmbedding runs a query with an embedding's vector.
func (s *IndexService) SearchEmbedding(
	ctx context.Context,
	name string,
	emb *domain.Embedding,
	opts domain.SearchOptions,
) ([]domain.SearchHit, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: query embedding is required", domain.ErrValidation)
	}
	return s.Search(ctx, name, emb.Vector, opts)
}

// Update replaces an item's vector.
func (s *IndexService) Update(ctx context.Context, name, id string, vector []float32) error {
	idx, err := s.Get(name)
	if err != nil {
		return err
	}
	return idx.Update(ctx, id, vector)
}

// Remove deletes an item.
func (s *IndexService) Remove(ctx context.Context, name, id string) error {
	idx, err := s.Get(name)
	if err != nil {
		return err
	}
	return idx.Remove(ctx, id)
}

// Commit makes pending adds visible.
func (s *IndexService) Commit(ctx context.Context, name string) error {
	idx, err := s.Get(name)
	if err != nil {
		return err
	}
	return idx.Commit(ctx)
}

// Save persists a committed index under key.
func (s *IndexService) Save(ctx context.Context, name, key string) error {
	if s.blobs == nil {
		return fmt.Errorf("%w: no blob store configured", domain.ErrValidation)
	}
	idx, err := s.Get(name)
	if err != nil {
		return err
	}

	data, err := s.factory.Encode(idx)
	if err != nil {
		return fmt.Errorf("encode index %s: %w", name, err)
	}
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save index %s: %w", name, err)
	}
	logger.Debug("Saved index %q to %s (%d bytes, %d items)", name, key, len(data), idx.Len())
	return nil
}

// Load restores an index from key under name.
func (s *IndexService) Load(ctx context.Context, name, key string) error {
	if s.blobs == nil {
		return fmt.Errorf("%w: no blob store configured", domain.ErrValidation)
	}
	if name == "" {
		return fmt.Errorf("%w: index name is required", domain.ErrValidation)
	}

	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load index %s: %w", name, err)
	}
	loaded, err := s.factory.Decode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.indexes[name]; ok {
		if existing.Dimension() != loaded.Dimension() {
			_ = loaded.Close()
			return fmt.Errorf("%w: index %s has dimension %d, stored index has %d",
				domain.ErrIndexConsistency, name, existing.Dimension(), loaded.Dimension())
		}
		if err := existing.Close(); err != nil {
			logger.Warn("closing replaced index %q: %v", name, err)
		}
	}
	s.indexes[name] = loaded
	logger.Debug("Loaded index %q from %s (%d items)", name, key, loaded.Len())
	return nil
}

// Stats describes an index.
func (s *IndexService) Stats(name string) (domain.IndexStats, error) {
	idx, err := s.Get(name)
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		Name:      name,
		Strategy:  idx.Strategy(),
		Metric:    idx.Metric(),
		Dimension: idx.Dimension(),
		Count:     idx.Len(),
	}, nil
}

// Names lists index names in ascending order.
func (s *IndexService) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Drop closes and forgets an index.
func (s *IndexService) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	delete(s.indexes, name)
	return idx.Close()
}

// Close closes every index.
func (s *IndexService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, idx := range s.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index %s: %w", name, err))
		}
	}
	s.indexes = make(map[string]driven.VectorIndex)
	return errors.Join(errs...)
}
