package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// structure is the committed, searchable part of an index.
// Callers hold Index.mu: read lock for lookups and search, write lock otherwise.
type structure interface {
	has(id string) bool
	metadata(id string) map[string]string
	insert(e domain.IndexEntry)
	delete(id string)
	search(q []float32, k int, filter *domain.MetadataFilter) []domain.SearchHit
	size() int
	compact()
	marshal() ([]byte, error)
	unmarshal(data []byte) error
}

// Index is a vector index with staged writes over a committed structure.
type Index struct {
	strategy domain.IndexStrategy
	dim      int
	metric   domain.Metric

	// writeMu serialises mutations and guards pending and seq.
	writeMu sync.Mutex
	pending []domain.IndexEntry
	seq     uint64

	// mu guards the committed structure.
	mu        sync.RWMutex
	committed structure
	closed    bool
}

func newIndex(strategy domain.IndexStrategy, dim int, metric domain.Metric, s structure) *Index {
	return &Index{
		strategy:  strategy,
		dim:       dim,
		metric:    metric,
		committed: s,
	}
}

// Strategy returns the implementation strategy.
func (x *Index) Strategy() domain.IndexStrategy { return x.strategy }

// Dimension returns the fixed vector length.
func (x *Index) Dimension() int { return x.dim }

// Metric returns the distance metric.
func (x *Index) Metric() domain.Metric { return x.metric }

// Len returns the number of committed, live items.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.committed.size()
}

// Pending returns the number of staged adds.
func (x *Index) Pending() int {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	return len(x.pending)
}

// Add stages an entry until the next Commit.
func (x *Index) Add(_ context.Context, entry domain.IndexEntry) (string, error) {
	if err := x.checkDim(entry.Vector); err != nil {
		return "", err
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	if entry.ID == "" {
		entry.ID = x.nextID()
	} else if x.pendingIndex(entry.ID) >= 0 || x.hasCommitted(entry.ID) {
		return "", fmt.Errorf("%w: item %s", domain.ErrAlreadyExists, entry.ID)
	}

	x.pending = append(x.pending, domain.IndexEntry{
		ID:       entry.ID,
		Vector:   append([]float32(nil), entry.Vector...),
		Metadata: copyMetadata(entry.Metadata),
	})
	return entry.ID, nil
}

// Remove deletes an item, staged or committed, immediately.
func (x *Index) Remove(_ context.Context, id string) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	if i := x.pendingIndex(id); i >= 0 {
		x.pending = append(x.pending[:i], x.pending[i+1:]...)
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.committed.has(id) {
		return fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	x.committed.delete(id)
	return nil
}

// Update replaces an item's vector. A committed item is removed at once
// and its replacement becomes visible at the next Commit.
func (x *Index) Update(_ context.Context, id string, vector []float32) error {
	if err := x.checkDim(vector); err != nil {
		return err
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	vec := append([]float32(nil), vector...)
	if i := x.pendingIndex(id); i >= 0 {
		x.pending[i].Vector = vec
		return nil
	}

	x.mu.Lock()
	if !x.committed.has(id) {
		x.mu.Unlock()
		return fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	md := x.committed.metadata(id)
	x.committed.delete(id)
	x.mu.Unlock()

	x.pending = append(x.pending, domain.IndexEntry{ID: id, Vector: vec, Metadata: md})
	return nil
}

// Search returns up to k committed items closest to query.
func (x *Index) Search(
	_ context.Context,
	query []float32,
	k int,
	filter *domain.MetadataFilter,
) ([]domain.SearchHit, error) {
	if err := x.checkDim(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, fmt.Errorf("%w: index closed", domain.ErrValidation)
	}
	return x.committed.search(query, k, filter), nil
}

// Commit makes staged adds visible.
func (x *Index) Commit(_ context.Context) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	if len(x.pending) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range x.pending {
		x.committed.insert(e)
	}
	x.committed.compact()
	x.pending = nil
	return nil
}

// MarshalBinary serialises the committed structure. Staged adds are not included.
func (x *Index) MarshalBinary() ([]byte, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.committed.marshal()
}

// snapshot returns the live count and the serialised committed structure
// taken under one read lock.
func (x *Index) snapshot() (int, []byte, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	body, err := x.committed.marshal()
	if err != nil {
		return 0, nil, err
	}
	return x.committed.size(), body, nil
}

// UnmarshalBinary replaces the committed structure and drops staged adds.
func (x *Index) UnmarshalBinary(data []byte) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.committed.unmarshal(data); err != nil {
		return err
	}
	x.pending = nil
	return nil
}

// Close releases resources. Searches after Close fail.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	return nil
}

func (x *Index) checkDim(v []float32) error {
	if len(v) != x.dim {
		return fmt.Errorf("%w: vector dimension %d does not match index dimension %d",
			domain.ErrValidation, len(v), x.dim)
	}
	return nil
}

func (x *Index) hasCommitted(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.committed.has(id)
}

// pendingIndex returns the position of id in pending, or -1. Caller holds writeMu.
func (x *Index) pendingIndex(id string) int {
	for i := range x.pending {
		if x.pending[i].ID == id {
			return i
		}
	}
	return -1
}

// nextID assigns a zero-padded sequence ID not already in use. Caller holds writeMu.
func (x *Index) nextID() string {
	for {
		x.seq++
		id := fmt.Sprintf("%012d", x.seq)
		if x.pendingIndex(id) < 0 && !x.hasCommitted(id) {
			return id
		}
	}
}

// New creates an index for cfg.
func New(cfg domain.IndexConfig) (driven.VectorIndex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case domain.IndexFlat, domain.IndexHNSW:
		var (
			idx *Index
			err error
		)
		if cfg.Strategy == domain.IndexFlat {
			idx, err = NewFlat(cfg.Dimension, cfg.Metric)
		} else {
			idx, err = NewHNSW(cfg.Dimension, cfg.Metric, cfg.HNSW)
		}
		if err != nil {
			return nil, err
		}
		return idx, nil
	case domain.IndexHybrid:
		inner, err := New(domain.IndexConfig{
			Strategy:  cfg.Hybrid.Inner,
			Dimension: cfg.Dimension,
			Metric:    cfg.Metric,
			HNSW:      cfg.HNSW,
		})
		if err != nil {
			return nil, err
		}
		return NewHybrid(inner, cfg.Hybrid), nil
	default:
		return nil, fmt.Errorf("%w: index strategy %q", domain.ErrUnsupportedType, cfg.Strategy)
	}
}
