package domain

import (
	"sort"
	"time"
)

// ResourceKind names a pool managed by the resource coordinator.
type ResourceKind string

// Resource kinds.
const (
	// ResourceEmbedding counts concurrent embedding generations.
	ResourceEmbedding ResourceKind = "embedding"

	// ResourceOracle counts concurrent oracle calls.
	ResourceOracle ResourceKind = "oracle"

	// ResourceCPU counts CPU-bound worker slots.
	ResourceCPU ResourceKind = "cpu"

	// ResourceMemoryMB counts megabytes of working set.
	ResourceMemoryMB ResourceKind = "memory_mb"
)

// Requirements express relative units per resource kind.
type Requirements map[ResourceKind]int64

// Kinds returns the requested kinds in sorted order.
func (r Requirements) Kinds() []ResourceKind {
	kinds := make([]ResourceKind, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsZero returns true if nothing is requested.
func (r Requirements) IsZero() bool {
	for _, n := range r {
		if n > 0 {
			return false
		}
	}
	return true
}

// ResourceUsage is a point-in-time view of one pool.
type ResourceUsage struct {
	Capacity int64 `json:"capacity"`
	InUse    int64 `json:"in_use"`
}

// ResourceConfig sizes the coordinator's pools.
type ResourceConfig struct {
	// Capacities is the fixed size of each pool.
	Capacities map[ResourceKind]int64

	// AcquireTimeout bounds how long an acquisition may wait.
	AcquireTimeout time.Duration
}

// DefaultResourceConfig returns the default pool sizes.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		Capacities: map[ResourceKind]int64{
			ResourceEmbedding: 4,
			ResourceOracle:    2,
			ResourceCPU:       4,
			ResourceMemoryMB:  1024,
		},
		AcquireTimeout: 5 * time.Second,
	}
}

// ChunkMemoryParam is the chunk step parameter holding the total bytes of
// its contents, used to size the step's memory share.
const ChunkMemoryParam = "content_bytes"

// DefaultStepRequirements returns the share a built-in step holds when its
// plan sets no Requires. Oracle steps take their pool per call instead.
func DefaultStepRequirements(step ProcessStep) Requirements {
	switch step.Kind {
	case StepKindChunk:
		mb := int64(1)
		if n := paramInt64(step.Params[ChunkMemoryParam]); n > 0 {
			// Contents plus the chunk copies.
			mb = max(mb, (2*n+(1<<20)-1)>>20)
		}
		return Requirements{ResourceCPU: 1, ResourceMemoryMB: mb}
	case StepKindEmbed, StepKindIndex, StepKindSaveIndex:
		return Requirements{ResourceCPU: 1}
	default:
		return nil
	}
}

func paramInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
