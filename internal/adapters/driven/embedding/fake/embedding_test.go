package fake

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingService_Deterministic(t *testing.T) {
	svc := NewEmbeddingService(64)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "reward hacking in RLHF")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "reward hacking in RLHF")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestEmbeddingService_DistinctTextsDiffer(t *testing.T) {
	svc := NewEmbeddingService(64)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "interpretability")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "governance")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEmbeddingService_UnitNorm(t *testing.T) {
	svc := NewEmbeddingService(128)

	vec, err := svc.Embed(context.Background(), "some text")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 0.001)
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	svc := NewEmbeddingService(32)

	got, err := svc.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	single, err := svc.Embed(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, single, got[0])
}

func TestEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(0)
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, ModelName, svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
