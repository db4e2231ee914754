package vectorindex

import (
	"fmt"
	"math"

	"github.com/viant/vec/search"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// distance evaluates a metric. Magnitudes are cached per vector and only
// read by the cosine metric.
type distance struct {
	metric domain.Metric
}

func newDistance(m domain.Metric) (distance, error) {
	if !m.IsValid() {
		return distance{}, fmt.Errorf("%w: distance metric %q", domain.ErrUnsupportedType, m)
	}
	return distance{metric: m}, nil
}

func magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// between returns the distance from a to b; smaller is closer.
// NaN results are mapped to +Inf so they sort last.
func (d distance) between(a []float32, am float32, b []float32, bm float32) float32 {
	var out float32
	switch d.metric {
	case domain.MetricEuclidean:
		out = search.Float32s(a).EuclideanDistance(b)
	case domain.MetricDot:
		out = -dot(a, b)
	default:
		if am == 0 || bm == 0 {
			return 1
		}
		out = 1 - dot(a, b)/(am*bm)
	}
	if math.IsNaN(float64(out)) {
		return float32(math.Inf(1))
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
