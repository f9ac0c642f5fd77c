package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedder_Normalised(t *testing.T) {
	v, err := New(128).Embed(context.Background(), "cache eviction policy for redis")
	require.NoError(t, err)

	assert.Len(t, v, 128)
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := New(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
	assert.Equal(t, e.Vector("Same Text"), e.Vector("same text"))
}

func TestEmbedder_SimilarTextScoresHigher(t *testing.T) {
	e := New(DefaultDimensions)
	q := e.Vector("redis cache eviction")

	near := cosine(q, e.Vector("how redis cache eviction works"))
	far := cosine(q, e.Vector("quarterly revenue forecast spreadsheet"))
	assert.Greater(t, near, far)
}

func TestEmbedder_EmptyText(t *testing.T) {
	assert.Equal(t, make([]float32, 8), New(8).Vector("  ,, "))
}

func TestEmbedder_Metadata(t *testing.T) {
	e := New(64)
	assert.Equal(t, "fnv-hash-64", e.ModelName())
	assert.NoError(t, e.Ping(context.Background()))
	assert.NoError(t, e.Close())
}
