package ai

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-notes-platform/internal/config"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := HashEmbedder{Dimension: 64}
	a, err := e.Embed(context.Background(), []string{"Photosynthesis in plants", "photosynthesis IN plants!"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 64)
	assert.Equal(t, a[0], a[1])
	assert.InDelta(t, 1.0, dot(a[0], a[0]), 1e-5)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := HashEmbedder{}
	v, err := e.Embed(context.Background(), []string{"cell membrane transport", "membrane transport proteins", "stock market prices"})
	require.NoError(t, err)
	assert.Len(t, v[0], hashDimension)
	assert.Greater(t, dot(v[0], v[1]), dot(v[0], v[2]))
}

func TestHashEmbedderEmptyText(t *testing.T) {
	v, err := HashEmbedder{Dimension: 8}.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	for _, x := range v[0] {
		assert.False(t, math.IsNaN(float64(x)))
		assert.Zero(t, x)
	}
}

func TestNewEmbedderProviders(t *testing.T) {
	ctx := context.Background()

	e, closeFn, err := NewEmbedder(ctx, &config.Config{EmbeddingsProvider: "local"})
	require.NoError(t, err)
	assert.IsType(t, HashEmbedder{}, e)
	assert.NoError(t, closeFn())

	_, _, err = NewEmbedder(ctx, &config.Config{EmbeddingsProvider: "google"})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")

	_, _, err = NewEmbedder(ctx, &config.Config{EmbeddingsProvider: "openai"})
	assert.ErrorContains(t, err, "unknown embeddings provider")
}

func TestGetRateLimits(t *testing.T) {
	assert.Equal(t, 10, getRateLimits("free").RPM)
	assert.Equal(t, 1000, getRateLimits("tier1").RPM)
	assert.Equal(t, 2000, getRateLimits("tier2").RPM)
}
