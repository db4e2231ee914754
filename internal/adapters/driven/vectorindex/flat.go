package vectorindex

import (
	"fmt"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// NewFlat creates an exact brute-force index.
func NewFlat(dim int, metric domain.Metric) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive, got %d", domain.ErrValidation, dim)
	}
	d, err := newDistance(metric)
	if err != nil {
		return nil, err
	}
	return newIndex(domain.IndexFlat, dim, metric, newFlat(dim, d)), nil
}

type flatItem struct {
	id       string
	vector   []float32
	mag      float32
	metadata map[string]string
}

// flat holds items in a dense slice for sequential scans.
type flat struct {
	dim   int
	dist  distance
	items []flatItem
	byID  map[string]int
}

func newFlat(dim int, d distance) *flat {
	return &flat{dim: dim, dist: d, byID: make(map[string]int)}
}

func (f *flat) has(id string) bool {
	_, ok := f.byID[id]
	return ok
}

func (f *flat) metadata(id string) map[string]string {
	if i, ok := f.byID[id]; ok {
		return copyMetadata(f.items[i].metadata)
	}
	return nil
}

func (f *flat) insert(e domain.IndexEntry) {
	f.byID[e.ID] = len(f.items)
	f.items = append(f.items, flatItem{
		id:       e.ID,
		vector:   e.Vector,
		mag:      magnitude(e.Vector),
		metadata: e.Metadata,
	})
}

// delete swaps the last item into the hole.
func (f *flat) delete(id string) {
	i, ok := f.byID[id]
	if !ok {
		return
	}
	last := len(f.items) - 1
	if i != last {
		f.items[i] = f.items[last]
		f.byID[f.items[i].id] = i
	}
	f.items[last] = flatItem{}
	f.items = f.items[:last]
	delete(f.byID, id)
}

func (f *flat) search(q []float32, k int, filter *domain.MetadataFilter) []domain.SearchHit {
	qm := magnitude(q)
	top := newTopK(k)
	for i := range f.items {
		it := &f.items[i]
		if !filter.Match(it.metadata) {
			continue
		}
		top.offer(candidate{id: it.id, dist: f.dist.between(q, qm, it.vector, it.mag), node: int32(i)})
	}
	return toHits(top.sorted(), func(c candidate) map[string]string {
		return f.items[c.node].metadata
	})
}

func (f *flat) size() int { return len(f.items) }

func (f *flat) compact() {}

func (f *flat) marshal() ([]byte, error) {
	var w writer
	w.uvarint(uint64(len(f.items)))
	for _, it := range f.items {
		w.string(it.id)
		w.vector(it.vector)
		w.metadata(it.metadata)
	}
	return w.bytes(), nil
}

func (f *flat) unmarshal(data []byte) error {
	r := newReader(data)
	n := r.uvarint()
	fresh := newFlat(f.dim, f.dist)
	for i := uint64(0); i < n && r.err == nil; i++ {
		id := r.string()
		vec := r.vector(f.dim)
		md := r.metadata()
		if r.err != nil {
			break
		}
		if fresh.has(id) {
			return fmt.Errorf("%w: duplicate item %s", domain.ErrIndexConsistency, id)
		}
		fresh.insert(domain.IndexEntry{ID: id, Vector: vec, Metadata: md})
	}
	if err := r.finish(); err != nil {
		return err
	}
	*f = *fresh
	return nil
}
