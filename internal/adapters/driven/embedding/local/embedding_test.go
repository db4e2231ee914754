package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := New(64)
	a, err := e.Embed(context.Background(), "Parse the config file")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "parse the CONFIG file!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, math.Sqrt(dot(a, a)), 1e-5)
}

func TestEmbedder_SimilarTextScoresHigher(t *testing.T) {
	e := New(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())

	q, _ := e.Embed(context.Background(), "open the database connection")
	near, _ := e.Embed(context.Background(), "open a database connection pool")
	far, _ := e.Embed(context.Background(), "render the button label in blue")

	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestEmbedder_EmptyText(t *testing.T) {
	e := New(8)
	v, err := e.Embed(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestEmbedder_EmbedBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(8).EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
