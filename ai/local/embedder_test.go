package local

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/answerit/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T) ai.Embedder {
	t.Helper()
	e, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingDimension(64)))
	require.NoError(t, err)
	return e
}

func TestEmbedTexts_Deterministic(t *testing.T) {
	e := newTestEmbedder(t)

	first, err := e.EmbedTexts(context.Background(), []string{"the quick brown fox"})
	require.NoError(t, err)
	second, err := e.EmbedTexts(context.Background(), []string{"the quick brown fox"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first[0], 64)
}

func TestEmbedTexts_UnitVectors(t *testing.T) {
	e := newTestEmbedder(t)

	vectors, err := e.EmbedTexts(context.Background(), []string{
		"alpha beta gamma",
		"completely unrelated words here",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	for _, v := range vectors {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestEmbedTexts_SharedTokensScoreHigher(t *testing.T) {
	e := newTestEmbedder(t)

	vectors, err := e.EmbedTexts(context.Background(), []string{
		"postgres replication lag monitoring",
		"postgres replication lag alerts",
		"chocolate cake recipe",
	})
	require.NoError(t, err)

	related := dot(vectors[0], vectors[1])
	unrelated := dot(vectors[0], vectors[2])
	assert.Greater(t, related, unrelated)
}

func TestEmbedTexts_EmptyText(t *testing.T) {
	e := newTestEmbedder(t)

	vectors, err := e.EmbedTexts(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], 64)
}

func TestDimension(t *testing.T) {
	e := newTestEmbedder(t)
	assert.Equal(t, 64, e.Dimension())
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
