package vectorindex

import (
	"container/heap"
	"maps"
	"slices"
	"sort"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// candidate is a scored item during search.
type candidate struct {
	id   string
	dist float32
	node int32
}

// closer orders by ascending distance, then ascending ID.
func closer(a, b candidate) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.id < b.id
}

// worstFirst is a max-heap: the farthest candidate is at the top.
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// bestFirst is a min-heap: the closest candidate is at the top.
type bestFirst []candidate

func (h bestFirst) Len() int           { return len(h) }
func (h bestFirst) Less(i, j int) bool { return closer(h[i], h[j]) }
func (h bestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *bestFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *bestFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK keeps the k closest candidates offered to it.
type topK struct {
	k int
	h worstFirst
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(worstFirst, 0, k)}
}

func (t *topK) offer(c candidate) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, c)
		return
	}
	if closer(c, t.h[0]) {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

func (t *topK) len() int { return len(t.h) }

// sorted returns the kept candidates closest first.
func (t *topK) sorted() []candidate {
	out := append([]candidate(nil), t.h...)
	sortCandidates(out)
	return out
}

func sortCandidates(c []candidate) {
	sort.Slice(c, func(i, j int) bool { return closer(c[i], c[j]) })
}

func toHits(cands []candidate, metadata func(c candidate) map[string]string) []domain.SearchHit {
	hits := make([]domain.SearchHit, len(cands))
	for i, c := range cands {
		hits[i] = domain.SearchHit{ID: c.id, Distance: c.dist, Metadata: copyMetadata(metadata(c))}
	}
	return hits
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
