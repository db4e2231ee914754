package steps

import (
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
)

// Built-in step kinds.
const (
	KindChunk     = domain.StepKindChunk
	KindEmbed     = domain.StepKindEmbed
	KindIndex     = domain.StepKindIndex
	KindSaveIndex = domain.StepKindSaveIndex
	KindOracle    = domain.StepKindOracle
)

// Deps are the services built-in steps run against.
type Deps struct {
	Contents  driven.ContentSource
	Chunker   driving.Chunker
	Generator driving.EmbeddingGenerator
	Indexes   driving.IndexService

	// Resources bounds per-item fan-out inside a step. Optional.
	Resources driving.ResourceCoordinator

	// Oracle serves the oracle step. Optional.
	Oracle driven.Oracle

	// ChunkStrategy is the default for chunk steps.
	ChunkStrategy domain.ChunkStrategy

	// IndexConfig is used when an index step creates its index.
	IndexConfig domain.IndexConfig

	// OracleTimeout bounds each oracle step call.
	OracleTimeout time.Duration
}

// RegisterDefaults registers every built-in step kind with the registry.
func RegisterDefaults(r *Registry, deps Deps) {
	r.Register(KindChunk, func(step domain.ProcessStep) (driven.StepHandler, error) {
		return newChunkStep(step, deps)
	})
	r.Register(KindEmbed, func(step domain.ProcessStep) (driven.StepHandler, error) {
		return newEmbedStep(step, deps)
	})
	r.Register(KindIndex, func(step domain.ProcessStep) (driven.StepHandler, error) {
		return newIndexStep(step, deps)
	})
	r.Register(KindSaveIndex, func(step domain.ProcessStep) (driven.StepHandler, error) {
		return newSaveIndexStep(step, deps)
	})
	r.Register(KindOracle, func(step domain.ProcessStep) (driven.StepHandler, error) {
		return newOracleStep(step, deps)
	})
}
