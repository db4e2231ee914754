package steps

import (
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.StepHandlerResolver = (*Registry)(nil)

// BuilderFunc creates a StepHandler for a plan step.
// The step's Params are handler-specific settings parsed from the plan.
type BuilderFunc func(step domain.ProcessStep) (driven.StepHandler, error)

// Registry maps step kinds to their builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty step registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a builder for a step kind, replacing any previous one.
func (r *Registry) Register(kind string, builder BuilderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = builder
}

// RegisterHandler registers a handler that serves every step of its kind.
func (r *Registry) RegisterHandler(h driven.StepHandler) {
	r.Register(h.Kind(), func(domain.ProcessStep) (driven.StepHandler, error) {
		return h, nil
	})
}

// Resolve builds the handler for a plan step.
func (r *Registry) Resolve(step domain.ProcessStep) (driven.StepHandler, error) {
	r.mu.RLock()
	builder, ok := r.builders[step.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: step kind %q", domain.ErrUnsupportedType, step.Kind)
	}
	h, err := builder(step)
	if err != nil {
		return nil, fmt.Errorf("build %s step %s: %w", step.Kind, step.ID, err)
	}
	return h, nil
}

// Has returns true if a builder for the kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[kind]
	return ok
}

// Kinds returns the registered step kinds in ascending order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.builders))
	for kind := range r.builders {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}
