package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
)

// Ensure ResourceCoordinator implements the interface.
var _ driving.ResourceCoordinator = (*ResourceCoordinator)(nil)

type pool struct {
	capacity int64
	sem      *semaphore.Weighted
	inUse    atomic.Int64
}

// ResourceCoordinator hands out shares of fixed-capacity pools.
// Kinds are always acquired in sorted order so two requests can never
// hold each other's pools.
type ResourceCoordinator struct {
	pools   map[domain.ResourceKind]*pool
	timeout time.Duration
}

// NewResourceCoordinator creates a coordinator with the configured pools.
func NewResourceCoordinator(cfg domain.ResourceConfig) (*ResourceCoordinator, error) {
	pools := make(map[domain.ResourceKind]*pool, len(cfg.Capacities))
	for kind, capacity := range cfg.Capacities {
		if capacity <= 0 {
			return nil, fmt.Errorf("%w: pool %s needs a positive capacity, got %d",
				domain.ErrValidation, kind, capacity)
		}
		pools[kind] = &pool{capacity: capacity, sem: semaphore.NewWeighted(capacity)}
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = domain.DefaultResourceConfig().AcquireTimeout
	}
	return &ResourceCoordinator{pools: pools, timeout: timeout}, nil
}

// allocation releases its share exactly once.
type allocation struct {
	once    sync.Once
	release func()
}

// Release returns the share. Later calls do nothing.
func (a *allocation) Release() {
	a.once.Do(a.release)
}

func (c *ResourceCoordinator) validate(req domain.Requirements) error {
	for kind, n := range req {
		p, ok := c.pools[kind]
		if !ok {
			return fmt.Errorf("%w: unknown resource kind %q", domain.ErrValidation, kind)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative request for %s", domain.ErrValidation, kind)
		}
		if n > p.capacity {
			return fmt.Errorf("%w: request for %d %s exceeds capacity %d",
				domain.ErrValidation, n, kind, p.capacity)
		}
	}
	return nil
}

func (c *ResourceCoordinator) releaser(held []domain.ResourceKind, req domain.Requirements) func() {
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			p := c.pools[held[i]]
			n := req[held[i]]
			p.inUse.Add(-n)
			p.sem.Release(n)
		}
	}
}

// Acquire blocks until the requirements fit, the acquire timeout elapses
// or ctx ends.
func (c *ResourceCoordinator) Acquire(ctx context.Context, req domain.Requirements) (driving.Allocation, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	held := make([]domain.ResourceKind, 0, len(req))
	for _, kind := range req.Kinds() {
		n := req[kind]
		if n == 0 {
			continue
		}
		p := c.pools[kind]
		if err := p.sem.Acquire(actx, n); err != nil {
			c.releaser(held, req)()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %s pool busy after %s", domain.ErrResourceExhausted, kind, c.timeout)
		}
		p.inUse.Add(n)
		held = append(held, kind)
	}
	return &allocation{release: c.releaser(held, req)}, nil
}

// TryAcquire acquires without waiting.
func (c *ResourceCoordinator) TryAcquire(req domain.Requirements) (driving.Allocation, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	held := make([]domain.ResourceKind, 0, len(req))
	for _, kind := range req.Kinds() {
		n := req[kind]
		if n == 0 {
			continue
		}
		p := c.pools[kind]
		if !p.sem.TryAcquire(n) {
			c.releaser(held, req)()
			return nil, fmt.Errorf("%w: %s pool busy", domain.ErrResourceExhausted, kind)
		}
		p.inUse.Add(n)
		held = append(held, kind)
	}
	return &allocation{release: c.releaser(held, req)}, nil
}

// Do runs fn while holding the requirements and releases on every exit path.
func (c *ResourceCoordinator) Do(
	ctx context.Context,
	req domain.Requirements,
	fn func(ctx context.Context) error,
) error {
	alloc, err := c.Acquire(ctx, req)
	if err != nil {
		return err
	}
	defer alloc.Release()
	return fn(ctx)
}

// Snapshot returns per-pool capacity and usage.
func (c *ResourceCoordinator) Snapshot() map[domain.ResourceKind]domain.ResourceUsage {
	out := make(map[domain.ResourceKind]domain.ResourceUsage, len(c.pools))
	for kind, p := range c.pools {
		out[kind] = domain.ResourceUsage{Capacity: p.capacity, InUse: p.inUse.Load()}
	}
	return out
}
