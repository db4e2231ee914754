package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// maxLevel bounds the layer count of any node.
const maxLevel = 16

// NewHNSW creates an approximate graph index.
func NewHNSW(dim int, metric domain.Metric, cfg domain.HNSWConfig) (*Index, error) {
	ic := domain.IndexConfig{Strategy: domain.IndexHNSW, Dimension: dim, Metric: metric, HNSW: cfg}
	if err := ic.Validate(); err != nil {
		return nil, err
	}
	d, err := newDistance(ic.Metric)
	if err != nil {
		return nil, err
	}
	return newIndex(domain.IndexHNSW, dim, ic.Metric, newHNSW(dim, d, ic.HNSW)), nil
}

type hnswNode struct {
	id       string
	vector   []float32
	mag      float32
	metadata map[string]string
	deleted  bool

	// links[l] holds neighbour node indices on layer l.
	links [][]int32
}

// hnsw is a hierarchical navigable small world graph. Removed nodes stay
// as tombstones for navigation and the graph is rebuilt once tombstones
// outnumber live nodes.
type hnsw struct {
	cfg  domain.HNSWConfig
	dim  int
	dist distance
	mL   float64

	pcg   *rand.PCG
	rng   *rand.Rand
	nodes []*hnswNode
	byID  map[string]int32
	entry int32
	top   int
	live  int
}

func newHNSW(dim int, d distance, cfg domain.HNSWConfig) *hnsw {
	h := &hnsw{cfg: cfg, dim: dim, dist: d}
	h.reset()
	return h
}

func (h *hnsw) reset() {
	h.mL = 1 / math.Log(float64(max(h.cfg.M, 2)))
	h.pcg = rand.NewPCG(h.cfg.Seed, h.cfg.Seed)
	h.rng = rand.New(h.pcg)
	h.nodes = nil
	h.byID = make(map[string]int32)
	h.entry = -1
	h.top = 0
	h.live = 0
}

func (h *hnsw) maxLinks(layer int) int {
	if layer == 0 {
		return 2 * h.cfg.M
	}
	return h.cfg.M
}

func (h *hnsw) randomLevel() int {
	u := 1 - h.rng.Float64()
	return min(int(math.Floor(-math.Log(u)*h.mL)), maxLevel)
}

func (h *hnsw) has(id string) bool {
	_, ok := h.byID[id]
	return ok
}

func (h *hnsw) metadata(id string) map[string]string {
	if i, ok := h.byID[id]; ok {
		return copyMetadata(h.nodes[i].metadata)
	}
	return nil
}

func (h *hnsw) size() int { return h.live }

func (h *hnsw) between(a, b int32) float32 {
	na, nb := h.nodes[a], h.nodes[b]
	return h.dist.between(na.vector, na.mag, nb.vector, nb.mag)
}

func (h *hnsw) score(q []float32, qm float32, n int32) candidate {
	node := h.nodes[n]
	return candidate{id: node.id, dist: h.dist.between(q, qm, node.vector, node.mag), node: n}
}

func (h *hnsw) insert(e domain.IndexEntry) {
	level := h.randomLevel()
	n := int32(len(h.nodes))
	node := &hnswNode{
		id:       e.ID,
		vector:   e.Vector,
		mag:      magnitude(e.Vector),
		metadata: e.Metadata,
		links:    make([][]int32, level+1),
	}
	h.nodes = append(h.nodes, node)
	h.byID[e.ID] = n
	h.live++

	if h.entry < 0 {
		h.entry = n
		h.top = level
		return
	}

	ep := []candidate{h.score(node.vector, node.mag, h.entry)}
	for l := h.top; l > level; l-- {
		ep = h.searchLayer(node.vector, node.mag, ep, 1, l)
	}
	for l := min(level, h.top); l >= 0; l-- {
		cands := h.searchLayer(node.vector, node.mag, ep, h.cfg.EfConstruction, l)
		neighbours := h.selectNeighbours(cands, h.maxLinks(l))
		node.links[l] = make([]int32, 0, len(neighbours))
		for _, c := range neighbours {
			node.links[l] = append(node.links[l], c.node)
			h.link(c.node, n, l)
		}
		ep = cands
	}

	if level > h.top {
		h.entry = n
		h.top = level
	}
}

// link adds to as a neighbour of from on layer l, pruning when full.
func (h *hnsw) link(from, to int32, l int) {
	node := h.nodes[from]
	node.links[l] = append(node.links[l], to)
	limit := h.maxLinks(l)
	if len(node.links[l]) <= limit {
		return
	}

	cands := make([]candidate, len(node.links[l]))
	for i, nb := range node.links[l] {
		cands[i] = candidate{id: h.nodes[nb].id, dist: h.between(from, nb), node: nb}
	}
	sortCandidates(cands)
	kept := h.selectNeighbours(cands, limit)
	node.links[l] = node.links[l][:0]
	for _, c := range kept {
		node.links[l] = append(node.links[l], c.node)
	}
}

// selectNeighbours applies the diversity heuristic to closest-first
// candidates, topping up with the nearest pruned ones.
func (h *hnsw) selectNeighbours(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}
	selected := make([]candidate, 0, m)
	var pruned []candidate
	for _, c := range cands {
		if len(selected) == m {
			break
		}
		good := true
		for _, s := range selected {
			if h.between(c.node, s.node) < c.dist {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}
	for _, c := range pruned {
		if len(selected) == m {
			break
		}
		selected = append(selected, c)
	}
	sortCandidates(selected)
	return selected
}

// searchLayer returns up to ef candidates closest to q on one layer,
// closest first. Tombstones are traversed and returned.
func (h *hnsw) searchLayer(q []float32, qm float32, entry []candidate, ef, layer int) []candidate {
	visited := make(map[int32]struct{}, ef*4)
	frontier := make(bestFirst, 0, ef)
	results := make(worstFirst, 0, ef+1)
	for _, c := range entry {
		if _, seen := visited[c.node]; seen {
			continue
		}
		visited[c.node] = struct{}{}
		heap.Push(&frontier, c)
		heap.Push(&results, c)
		if results.Len() > ef {
			heap.Pop(&results)
		}
	}

	for frontier.Len() > 0 {
		cur := heap.Pop(&frontier).(candidate)
		if results.Len() >= ef && closer(results[0], cur) {
			break
		}
		links := h.nodes[cur.node].links
		if layer >= len(links) {
			continue
		}
		for _, nb := range links[layer] {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			c := h.score(q, qm, nb)
			if results.Len() < ef || closer(c, results[0]) {
				heap.Push(&frontier, c)
				heap.Push(&results, c)
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := []candidate(results)
	sortCandidates(out)
	return out
}

// search widens ef by doubling while tombstones or the filter leave fewer
// than k hits. Once ef covers the graph the scan is exhaustive.
func (h *hnsw) search(q []float32, k int, filter *domain.MetadataFilter) []domain.SearchHit {
	if h.entry < 0 || h.live == 0 || k <= 0 {
		return nil
	}
	qm := magnitude(q)
	want := min(k, h.live)

	ef := max(h.cfg.EfSearch, k)
	for {
		top := newTopK(k)
		for _, c := range h.candidates(q, qm, ef) {
			node := h.nodes[c.node]
			if node.deleted || !filter.Match(node.metadata) {
				continue
			}
			top.offer(c)
		}
		if top.len() >= want || ef >= len(h.nodes) {
			return toHits(top.sorted(), func(c candidate) map[string]string {
				return h.nodes[c.node].metadata
			})
		}
		ef *= 2
	}
}

func (h *hnsw) candidates(q []float32, qm float32, ef int) []candidate {
	if len(h.nodes) <= ef {
		// Graphs no larger than the candidate list are scanned exhaustively.
		cands := make([]candidate, len(h.nodes))
		for i := range h.nodes {
			cands[i] = h.score(q, qm, int32(i))
		}
		return cands
	}
	ep := []candidate{h.score(q, qm, h.entry)}
	for l := h.top; l > 0; l-- {
		ep = h.searchLayer(q, qm, ep, 1, l)
	}
	return h.searchLayer(q, qm, ep, ef, 0)
}

func (h *hnsw) delete(id string) {
	n, ok := h.byID[id]
	if !ok {
		return
	}
	h.nodes[n].deleted = true
	delete(h.byID, id)
	h.live--
	h.compact()
}

// compact rebuilds the graph from live nodes once tombstones outnumber them.
func (h *hnsw) compact() {
	tombstones := len(h.nodes) - h.live
	if tombstones == 0 || tombstones <= h.live {
		return
	}
	old := h.nodes
	h.reset()
	for _, node := range old {
		if node.deleted {
			continue
		}
		h.insert(domain.IndexEntry{ID: node.id, Vector: node.vector, Metadata: node.metadata})
	}
}

func (h *hnsw) marshal() ([]byte, error) {
	var w writer
	w.u32(uint32(h.cfg.M))
	w.u32(uint32(h.cfg.EfConstruction))
	w.u32(uint32(h.cfg.EfSearch))
	w.u64(h.cfg.Seed)

	state, err := h.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal level generator: %w", err)
	}
	w.string(string(state))

	w.u32(uint32(h.top))
	w.u32(uint32(h.entry + 1))
	w.uvarint(uint64(len(h.nodes)))
	for _, node := range h.nodes {
		w.string(node.id)
		w.vector(node.vector)
		w.metadata(node.metadata)
		if node.deleted {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.uvarint(uint64(len(node.links)))
		for _, layer := range node.links {
			w.uvarint(uint64(len(layer)))
			for _, nb := range layer {
				w.u32(uint32(nb))
			}
		}
	}
	return w.bytes(), nil
}

func (h *hnsw) unmarshal(data []byte) error {
	r := newReader(data)
	cfg := domain.HNSWConfig{
		M:              int(r.u32()),
		EfConstruction: int(r.u32()),
		EfSearch:       int(r.u32()),
		Seed:           r.u64(),
	}
	state := r.string()
	top := int(r.u32())
	entry := int32(r.u32()) - 1
	count := r.uvarint()
	if r.err != nil {
		return r.err
	}
	if count > uint64(len(data)) {
		return fmt.Errorf("%w: node count %d exceeds data", domain.ErrIndexConsistency, count)
	}

	fresh := newHNSW(h.dim, h.dist, cfg)
	if err := fresh.pcg.UnmarshalBinary([]byte(state)); err != nil {
		return fmt.Errorf("%w: level generator state: %v", domain.ErrIndexConsistency, err)
	}

	fresh.nodes = make([]*hnswNode, 0, count)
	for i := uint64(0); i < count && r.err == nil; i++ {
		node := &hnswNode{
			id:       r.string(),
			vector:   r.vector(h.dim),
			metadata: r.metadata(),
			deleted:  r.u8() == 1,
		}
		layers := r.uvarint()
		if layers > maxLevel+1 {
			return fmt.Errorf("%w: node %s has %d layers", domain.ErrIndexConsistency, node.id, layers)
		}
		node.links = make([][]int32, layers)
		for l := range node.links {
			n := r.uvarint()
			if n > count {
				return fmt.Errorf("%w: node %s has %d links", domain.ErrIndexConsistency, node.id, n)
			}
			node.links[l] = make([]int32, n)
			for j := range node.links[l] {
				nb := r.u32()
				if uint64(nb) >= count {
					return fmt.Errorf("%w: node %s links to missing node %d", domain.ErrIndexConsistency, node.id, nb)
				}
				node.links[l][j] = int32(nb)
			}
		}
		if r.err != nil {
			break
		}
		node.mag = magnitude(node.vector)
		if !node.deleted {
			if fresh.has(node.id) {
				return fmt.Errorf("%w: duplicate item %s", domain.ErrIndexConsistency, node.id)
			}
			fresh.byID[node.id] = int32(len(fresh.nodes))
			fresh.live++
		}
		fresh.nodes = append(fresh.nodes, node)
	}
	if err := r.finish(); err != nil {
		return err
	}
	if entry >= int32(len(fresh.nodes)) || (entry < 0 && len(fresh.nodes) > 0) {
		return fmt.Errorf("%w: entry point %d out of range", domain.ErrIndexConsistency, entry)
	}
	if entry >= 0 && top >= len(fresh.nodes[entry].links) {
		return fmt.Errorf("%w: entry point has no layer %d", domain.ErrIndexConsistency, top)
	}
	fresh.entry = entry
	fresh.top = top
	*h = *fresh
	return nil
}
