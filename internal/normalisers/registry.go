package normalisers

import (
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/normalisers/docx"
	"github.com/custodia-labs/boltindex/internal/normalisers/eml"
	"github.com/custodia-labs/boltindex/internal/normalisers/html"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps file extensions to normalisers.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]driven.Normaliser
}

// NewRegistry creates a registry holding the given normalisers.
func NewRegistry(normalisers ...driven.Normaliser) *Registry {
	r := &Registry{byExt: make(map[string]driven.Normaliser)}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Defaults returns a registry with every built-in normaliser.
func Defaults() *Registry {
	return NewRegistry(html.New(), docx.New(), eml.New())
}

// Register adds a normaliser for each of its extensions.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range n.Extensions() {
		r.byExt[normaliseExt(ext)] = n
	}
}

// Lookup returns the normaliser for ext. Case is ignored.
func (r *Registry) Lookup(ext string) (driven.Normaliser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byExt[normaliseExt(ext)]
	return n, ok
}

// Extensions returns the handled extensions in ascending order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

func normaliseExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
