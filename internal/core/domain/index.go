package domain

import "fmt"

// IndexStrategy selects a vector index implementation.
// The set is closed: flat, hnsw and hybrid.
type IndexStrategy string

// Index strategies.
const (
	// IndexFlat is an exact brute-force scan.
	IndexFlat IndexStrategy = "flat"

	// IndexHNSW is a hierarchical navigable small world graph (approximate).
	IndexHNSW IndexStrategy = "hnsw"

	// IndexHybrid wraps flat or hnsw with post-retrieval metadata filtering.
	IndexHybrid IndexStrategy = "hybrid"
)

// IsValid returns true if the strategy is recognised.
func (s IndexStrategy) IsValid() bool {
	switch s {
	case IndexFlat, IndexHNSW, IndexHybrid:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s IndexStrategy) String() string {
	return string(s)
}

// Description returns a human-readable description of the strategy.
func (s IndexStrategy) Description() string {
	switch s {
	case IndexFlat:
		return "Flat (exact linear scan)"
	case IndexHNSW:
		return "HNSW (approximate graph search)"
	case IndexHybrid:
		return "Hybrid (vector search with metadata filtering)"
	default:
		return unknownDescription
	}
}

// Metric is a distance function. Smaller is closer for every metric.
type Metric string

// Distance metrics.
const (
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = "cosine"

	// MetricEuclidean is the L2 distance.
	MetricEuclidean Metric = "euclidean"

	// MetricDot is the negated dot product.
	MetricDot Metric = "dot"
)

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDot:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// HNSWConfig holds graph construction and query parameters.
//
// Recall grows with EfSearch. With the defaults (M=16, EfConstruction=200,
// EfSearch=100) top-10 recall against the flat strategy is above 0.9 on
// uniformly distributed data of a few thousand points. It is not exact.
type HNSWConfig struct {
	// M is the maximum number of neighbours per node above layer 0.
	// Layer 0 allows 2*M.
	M int

	// EfConstruction is the candidate list size while inserting.
	EfConstruction int

	// EfSearch is the candidate list size while querying.
	EfSearch int

	// Seed makes level assignment reproducible.
	Seed uint64
}

// DefaultHNSWConfig returns the default graph parameters.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:              16,
		EfConstruction: 200,
		EfSearch:       100,
		Seed:           1,
	}
}

// HybridConfig holds over-fetch parameters for the hybrid strategy.
type HybridConfig struct {
	// Inner is the wrapped vector strategy, flat or hnsw.
	Inner IndexStrategy

	// OverFetch is the initial candidate multiplier.
	OverFetch int

	// MaxOverFetch caps the multiplier as it doubles.
	MaxOverFetch int
}

// DefaultHybridConfig returns the default hybrid parameters.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		Inner:        IndexHNSW,
		OverFetch:    4,
		MaxOverFetch: 64,
	}
}

// IndexConfig describes a vector index instance.
type IndexConfig struct {
	Strategy  IndexStrategy
	Dimension int
	Metric    Metric
	HNSW      HNSWConfig
	Hybrid    HybridConfig
}

// Validate checks the configuration, filling unset tuning parameters with defaults.
func (c *IndexConfig) Validate() error {
	if !c.Strategy.IsValid() {
		return fmt.Errorf("%w: index strategy %q", ErrUnsupportedType, c.Strategy)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: index dimension must be positive, got %d", ErrValidation, c.Dimension)
	}
	if c.Metric == "" {
		c.Metric = MetricCosine
	}
	if !c.Metric.IsValid() {
		return fmt.Errorf("%w: distance metric %q", ErrUnsupportedType, c.Metric)
	}

	def := DefaultHNSWConfig()
	if c.HNSW.M <= 0 {
		c.HNSW.M = def.M
	}
	if c.HNSW.EfConstruction <= 0 {
		c.HNSW.EfConstruction = def.EfConstruction
	}
	if c.HNSW.EfSearch <= 0 {
		c.HNSW.EfSearch = def.EfSearch
	}
	if c.HNSW.Seed == 0 {
		c.HNSW.Seed = def.Seed
	}

	if c.Strategy == IndexHybrid {
		hdef := DefaultHybridConfig()
		if c.Hybrid.Inner == "" {
			c.Hybrid.Inner = hdef.Inner
		}
		if c.Hybrid.Inner != IndexFlat && c.Hybrid.Inner != IndexHNSW {
			return fmt.Errorf("%w: hybrid index cannot wrap %q", ErrValidation, c.Hybrid.Inner)
		}
		if c.Hybrid.OverFetch <= 0 {
			c.Hybrid.OverFetch = hdef.OverFetch
		}
		if c.Hybrid.MaxOverFetch < c.Hybrid.OverFetch {
			c.Hybrid.MaxOverFetch = max(hdef.MaxOverFetch, c.Hybrid.OverFetch)
		}
	}
	return nil
}

// IndexEntry is an item stored in a vector index.
type IndexEntry struct {
	// ID is unique per index instance. Empty IDs are assigned on add.
	ID string

	// Vector must match the index dimension.
	Vector []float32

	// Metadata is an opaque bag used for filtering.
	Metadata map[string]string
}

// SearchHit is one search result.
type SearchHit struct {
	ID       string            `json:"id"`
	Distance float32           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MetadataFilter selects index entries by metadata.
// Every Equals pair must match, and Predicate, when set, must return true.
type MetadataFilter struct {
	Equals    map[string]string
	Predicate func(metadata map[string]string) bool
}

// IsEmpty returns true if the filter accepts everything.
func (f *MetadataFilter) IsEmpty() bool {
	return f == nil || (len(f.Equals) == 0 && f.Predicate == nil)
}

// Match reports whether metadata passes the filter. A nil filter matches all.
func (f *MetadataFilter) Match(metadata map[string]string) bool {
	if f == nil {
		return true
	}
	for k, v := range f.Equals {
		if metadata[k] != v {
			return false
		}
	}
	if f.Predicate != nil && !f.Predicate(metadata) {
		return false
	}
	return true
}

// SearchOptions configures a caller-facing search.
type SearchOptions struct {
	// K is the maximum number of hits.
	K int

	// Filter restricts hits by metadata.
	Filter *MetadataFilter

	// MaxDistance drops hits further than this when positive.
	MaxDistance float32
}

// IndexStats summarises an index instance.
type IndexStats struct {
	Name      string        `json:"name"`
	Strategy  IndexStrategy `json:"strategy"`
	Metric    Metric        `json:"metric"`
	Dimension int           `json:"dimension"`
	Count     int           `json:"count"`
}

// IndexKey is the blob key an index is saved under by default.
func IndexKey(name string) string {
	return "indexes/" + name + ".bidx"
}
