package hashing

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

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := New(64)
	ctx := context.Background()

	a, err := e.EmbedQuery(ctx, "attention is all you need")
	require.NoError(t, err)
	b, err := e.EmbedQuery(ctx, "attention is all you need")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestEmbedder_NeverZero(t *testing.T) {
	e := New(32)
	for _, text := range []string{"", "   ", "the and of", "!!! ..."} {
		v, err := e.EmbedQuery(context.Background(), text)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, norm(v), 1e-6, "text %q", text)
	}
}

func TestEmbedder_SimilarTextsAreCloser(t *testing.T) {
	e := New(DefaultDimension)
	vs, err := e.EmbedDocuments(context.Background(), []string{
		"transformer attention heads process tokens in parallel",
		"the transformer uses attention heads over tokens",
		"photosynthesis converts sunlight into chemical energy in plants",
	})
	require.NoError(t, err)
	require.Len(t, vs, 3)

	assert.Greater(t, cosine(vs[0], vs[1]), cosine(vs[0], vs[2]))
}

func TestEmbedder_DimensionBounds(t *testing.T) {
	assert.Equal(t, DefaultDimension, New(0).Dimension())
	assert.Equal(t, minDimension, New(2).Dimension())
	assert.Equal(t, "hashing-128", New(128).Name())
}

func TestEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(16).EmbedDocuments(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
