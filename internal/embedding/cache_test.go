package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	*HashEmbedder
	calls      int
	batchCalls int
	batchSizes []int
	fail       bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("model down")
	}
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	c.batchSizes = append(c.batchSizes, len(texts))
	return embedEach(ctx, c, texts)
}

func TestCachedEmbedder_Hit(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	a, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	b, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()
	for _, s := range []string{"a", "b", "c", "a"} {
		_, err := c.Embed(ctx, s)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, inner.calls, "a was evicted by c")
	assert.Equal(t, 2, c.Len())
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8), fail: true}
	c := NewCachedEmbedder(inner, 10)
	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCachedEmbedder_BatchOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()
	_, err := c.Embed(ctx, "cached")
	require.NoError(t, err)

	out, err := c.EmbedBatch(ctx, []string{"cached", "new1", "new2"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int{2}, inner.batchSizes)

	out2, err := c.EmbedBatch(ctx, []string{"new1", "new2"})
	require.NoError(t, err)
	assert.Equal(t, out[1:], out2)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	c := NewCachedEmbedder(NewHashEmbedder(12), 0)
	assert.Equal(t, 12, c.Dimensions())
	assert.Equal(t, HashEmbedderName, c.ModelName())
	assert.NoError(t, c.Close())
}
