package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(384, 0)
	a, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
	assert.InDelta(t, 1.0, norm(a), 1e-5)

	other, err := NewHashEmbedder(384, 0).Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, other, "a fresh embedder must reproduce the vector")
}

func TestHashEmbedder_DistinctInputs(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(64, 0)
	a, _ := e.Embed(ctx, "the quick brown fox")
	b, _ := e.Embed(ctx, "the quick brown fox.")
	assert.NotEqual(t, a, b)

	seeded, _ := NewHashEmbedder(64, 7).Embed(ctx, "the quick brown fox")
	assert.NotEqual(t, a, seeded)
}

func TestHashEmbedder_EmptyString(t *testing.T) {
	e := NewHashEmbedder(16, 0)
	v, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, v, 16)
	assert.InDelta(t, 1.0, norm(v), 1e-5)
}

func TestHashEmbedder_BatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(32, 1)
	texts := []string{"alpha", "beta", "", "alpha"}
	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		assert.Equal(t, single, batch[i])
	}
	assert.Equal(t, batch[0], batch[3])
}

func TestHashEmbedder_Defaults(t *testing.T) {
	e := NewHashEmbedder(0, 0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
	assert.Equal(t, BackendDemo, e.Backend())
	assert.NoError(t, e.Close())
}

func TestHashEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8, 0).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
