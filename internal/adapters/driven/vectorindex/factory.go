package vectorindex

import (
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.IndexFactory = Factory{}

// Factory builds the indexes of this package.
type Factory struct{}

// New creates an empty index for cfg.
func (Factory) New(cfg domain.IndexConfig) (driven.VectorIndex, error) {
	return New(cfg)
}

// Encode serialises idx.
func (Factory) Encode(idx driven.VectorIndex) ([]byte, error) {
	return Encode(idx)
}

// Decode rebuilds an index.
func (Factory) Decode(data []byte) (driven.VectorIndex, error) {
	return Decode(data)
}
