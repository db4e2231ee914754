package vectorindex

import (
	"context"
	"fmt"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure Hybrid implements the interface.
var _ driven.VectorIndex = (*Hybrid)(nil)

// Hybrid filters the results of an inner vector index by metadata.
// Filtered searches over-fetch from the inner index and double the
// over-fetch factor until k hits pass, the inner index is exhausted,
// or the factor reaches its cap. A short result is not an error.
type Hybrid struct {
	inner        driven.VectorIndex
	overFetch    int
	maxOverFetch int
}

// NewHybrid wraps inner with metadata filtering.
func NewHybrid(inner driven.VectorIndex, cfg domain.HybridConfig) *Hybrid {
	def := domain.DefaultHybridConfig()
	if cfg.OverFetch <= 0 {
		cfg.OverFetch = def.OverFetch
	}
	if cfg.MaxOverFetch < cfg.OverFetch {
		cfg.MaxOverFetch = max(def.MaxOverFetch, cfg.OverFetch)
	}
	return &Hybrid{inner: inner, overFetch: cfg.OverFetch, maxOverFetch: cfg.MaxOverFetch}
}

// Strategy returns IndexHybrid.
func (h *Hybrid) Strategy() domain.IndexStrategy { return domain.IndexHybrid }

// Inner returns the wrapped index.
func (h *Hybrid) Inner() driven.VectorIndex { return h.inner }

func (h *Hybrid) Dimension() int        { return h.inner.Dimension() }
func (h *Hybrid) Metric() domain.Metric { return h.inner.Metric() }
func (h *Hybrid) Len() int              { return h.inner.Len() }

func (h *Hybrid) Add(ctx context.Context, entry domain.IndexEntry) (string, error) {
	return h.inner.Add(ctx, entry)
}

func (h *Hybrid) Remove(ctx context.Context, id string) error {
	return h.inner.Remove(ctx, id)
}

func (h *Hybrid) Update(ctx context.Context, id string, vector []float32) error {
	return h.inner.Update(ctx, id, vector)
}

func (h *Hybrid) Commit(ctx context.Context) error {
	return h.inner.Commit(ctx)
}

// Search returns up to k hits that pass filter.
func (h *Hybrid) Search(
	ctx context.Context,
	query []float32,
	k int,
	filter *domain.MetadataFilter,
) ([]domain.SearchHit, error) {
	if filter.IsEmpty() || k <= 0 {
		return h.inner.Search(ctx, query, k, nil)
	}

	factor := h.overFetch
	for {
		fetch := k * factor
		hits, err := h.inner.Search(ctx, query, fetch, nil)
		if err != nil {
			return nil, err
		}

		kept := make([]domain.SearchHit, 0, k)
		for _, hit := range hits {
			if filter.Match(hit.Metadata) {
				kept = append(kept, hit)
				if len(kept) == k {
					break
				}
			}
		}

		if len(kept) == k || len(hits) < fetch || factor >= h.maxOverFetch {
			return kept, nil
		}
		if err := ctx.Err(); err != nil {
			return kept, err
		}
		factor = min(factor*2, h.maxOverFetch)
	}
}

func (h *Hybrid) MarshalBinary() ([]byte, error) { return h.inner.MarshalBinary() }

func (h *Hybrid) snapshot() (int, []byte, error) {
	inner, ok := h.inner.(snapshotter)
	if !ok {
		return 0, nil, fmt.Errorf("%w: inner index %T cannot be encoded", domain.ErrUnsupportedType, h.inner)
	}
	return inner.snapshot()
}

func (h *Hybrid) UnmarshalBinary(data []byte) error { return h.inner.UnmarshalBinary(data) }

func (h *Hybrid) Close() error { return h.inner.Close() }
