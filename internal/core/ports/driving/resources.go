package driving

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// Allocation is a held share of the resource pools.
type Allocation interface {
	// Release returns the share. Safe to call more than once.
	Release()
}

// ResourceCoordinator hands out bounded shares of fixed-capacity pools.
type ResourceCoordinator interface {
	// Acquire blocks until the requirements fit, the acquire timeout elapses
	// (domain.ErrResourceExhausted), or ctx ends.
	Acquire(ctx context.Context, req domain.Requirements) (Allocation, error)

	// TryAcquire acquires without waiting.
	TryAcquire(req domain.Requirements) (Allocation, error)

	// Do runs fn while holding the requirements and releases on every exit path.
	Do(ctx context.Context, req domain.Requirements, fn func(ctx context.Context) error) error

	// Snapshot returns per-pool capacity and usage.
	Snapshot() map[domain.ResourceKind]domain.ResourceUsage
}
