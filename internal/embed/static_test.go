package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	first, err := e.Embed(context.Background(), "load user profile from cache")
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), "load user profile from cache")
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical text yields identical vector")
	assert.Len(t, first, StaticDimensions)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "quarterly revenue forecast")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedder_EmptyTextYieldsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "   \n\t  ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_SimilarTextCloserThanUnrelated(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	ctx := context.Background()
	base, err := e.Embed(ctx, "parse json configuration file")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "parseJSONFile reads a configuration")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "thermal throttling on gpu hardware")
	require.NoError(t, err)

	assert.Greater(t, cosine(base, near), cosine(base, far),
		"lexically overlapping text should score higher")
}

func TestStaticEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedder_ClosedRejectsEmbed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"parseJSONFile", []string{"parse", "JSON", "File"}},
		{"simple", []string{"simple"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitCamelCase(tt.input), "input %q", tt.input)
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
