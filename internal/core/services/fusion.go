package services

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// fuser combines a structural and a semantic vector into one of fixed length.
type fuser struct {
	strategy         domain.FusionStrategy
	dim              int
	structuralWeight float32
	semanticWeight   float32

	// projection is dim rows of 2*dim columns, only for FusionProjection.
	projection [][]float32
}

func newFuser(cfg domain.GeneratorConfig) (*fuser, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", domain.ErrValidation, cfg.Dimension)
	}
	f := &fuser{
		strategy:         cfg.Fusion,
		dim:              cfg.Dimension,
		structuralWeight: cfg.StructuralWeight,
		semanticWeight:   cfg.SemanticWeight,
	}
	switch cfg.Fusion {
	case domain.FusionWeightedAverage:
		if cfg.StructuralWeight < 0 || cfg.SemanticWeight < 0 || cfg.StructuralWeight+cfg.SemanticWeight == 0 {
			return nil, fmt.Errorf("%w: fusion weights must be non-negative and not both zero", domain.ErrValidation)
		}
	case domain.FusionConcatenate:
		if cfg.Dimension < 2 {
			return nil, fmt.Errorf("%w: concatenation needs a dimension of at least 2", domain.ErrValidation)
		}
	case domain.FusionProjection:
		f.projection = projectionMatrix(cfg.Dimension, cfg.ProjectionSeed)
	default:
		return nil, fmt.Errorf("%w: fusion strategy %q", domain.ErrUnsupportedType, cfg.Fusion)
	}
	return f, nil
}

// structuralDim is the length the structural vector is computed at.
func (f *fuser) structuralDim() int {
	if f.strategy == domain.FusionConcatenate {
		return f.dim / 2
	}
	return f.dim
}

// semanticDim is the length the semantic vector is padded or truncated to.
func (f *fuser) semanticDim() int {
	if f.strategy == domain.FusionConcatenate {
		return f.dim - f.dim/2
	}
	return f.dim
}

// fuse combines both vectors. A nil semantic vector yields the structural
// contribution alone, which is what a degraded embedding carries.
func (f *fuser) fuse(structural, semantic []float32) []float32 {
	s := normalized(padOrTruncate(structural, f.structuralDim()))
	var m []float32
	if semantic != nil {
		m = normalized(padOrTruncate(semantic, f.semanticDim()))
	}

	switch f.strategy {
	case domain.FusionConcatenate:
		out := make([]float32, 0, f.dim)
		out = append(out, s...)
		if m == nil {
			m = make([]float32, f.semanticDim())
		}
		return normalized(append(out, m...))

	case domain.FusionProjection:
		in := make([]float32, 2*f.dim)
		copy(in, s)
		copy(in[f.dim:], m)
		out := make([]float32, f.dim)
		for i, row := range f.projection {
			var sum float32
			for j, w := range row {
				sum += w * in[j]
			}
			out[i] = sum
		}
		return normalized(out)

	default:
		if m == nil {
			return s
		}
		out := make([]float32, f.dim)
		for i := range out {
			out[i] = f.structuralWeight*s[i] + f.semanticWeight*m[i]
		}
		return normalized(out)
	}
}

// projectionMatrix draws a seeded Gaussian matrix scaled by 1/sqrt(dim).
func projectionMatrix(dim int, seed uint64) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	scale := 1 / math.Sqrt(float64(dim))
	m := make([][]float32, dim)
	for i := range m {
		row := make([]float32, 2*dim)
		for j := range row {
			row[j] = float32(rng.NormFloat64() * scale)
		}
		m[i] = row
	}
	return m
}

// padOrTruncate returns a vector of exactly n values.
func padOrTruncate(v []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, v)
	return out
}

// normalize scales v to unit length in place. Zero vectors are left alone.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

func normalized(v []float32) []float32 {
	normalize(v)
	return v
}
