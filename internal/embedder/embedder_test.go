package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many provider calls reach it
type countingEmbedder struct {
	embedCalls int32
	batchCalls int32
	failWith   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&c.embedCalls, 1)
	if c.failWith != nil {
		return nil, c.failWith
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&c.batchCalls, 1)
	if c.failWith != nil {
		return nil, c.failWith
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int   { return 2 }
func (c *countingEmbedder) Provider() string { return "counting" }
func (c *countingEmbedder) Model() string    { return "counting-v1" }
func (c *countingEmbedder) Close() error     { return nil }

func TestCachedEmbedHitsCacheOnRepeat(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCached(inner, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "mitochondria")
	require.NoError(t, err)

	second, err := cached.Embed(ctx, "mitochondria")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.embedCalls)
	assert.Equal(t, 1, cached.CacheLen())
}

func TestCachedReturnsIsolatedCopies(t *testing.T) {
	cached := NewCached(&countingEmbedder{}, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "text")
	require.NoError(t, err)
	first[0] = -999

	second, err := cached.Embed(ctx, "text")
	require.NoError(t, err)
	assert.NotEqual(t, float32(-999), second[0])
}

func TestCachedBatchOnlyFetchesMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCached(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)

	vectors, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{5, 1}, vectors[0])
	assert.Equal(t, []float32{4, 1}, vectors[1])

	// Only the two misses went to the provider
	assert.Equal(t, int32(1), inner.batchCalls)
	assert.Equal(t, 3, cached.CacheLen())

	// Fully cached batch makes no provider calls at all
	_, err = cached.EmbedBatch(ctx, []string{"beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.batchCalls)
}

func TestCachedPropagatesProviderError(t *testing.T) {
	sentinel := errors.New("provider down")
	cached := NewCached(&countingEmbedder{failWith: sentinel}, 10)

	_, err := cached.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 0, cached.CacheLen())
}

func TestCachedRejectsEmptyInput(t *testing.T) {
	cached := NewCached(&countingEmbedder{}, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = cached.EmbedBatch(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = cached.EmbedBatch(ctx, []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLocalProviderDeterministic(t *testing.T) {
	local, err := NewLocalProvider()
	require.NoError(t, err)
	ctx := context.Background()

	a, err := local.Embed(ctx, "the krebs cycle")
	require.NoError(t, err)
	b, err := local.Embed(ctx, "the krebs cycle")
	require.NoError(t, err)
	other, err := local.Embed(ctx, "photosynthesis")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Len(t, a, LocalDimension)
	assert.Equal(t, LocalDimension, local.Dimension())
}

func TestLocalProviderVectorRange(t *testing.T) {
	local, err := NewLocalProvider()
	require.NoError(t, err)

	vec, err := local.Embed(context.Background(), "bounded components")
	require.NoError(t, err)
	for _, v := range vec {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestLocalProviderBatchAlignment(t *testing.T) {
	local, err := NewLocalProvider()
	require.NoError(t, err)
	ctx := context.Background()

	vectors, err := local.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	single, err := local.Embed(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, single, vectors[1])
}

func TestRetryWithBackoffSucceedsAfterFailures(t *testing.T) {
	attempts := 0
	config := RetryConfig{MaxRetries: 3, BaseDelay: 1, MaxDelay: 10, Multiplier: 2}

	result, err := retryWithBackoff(context.Background(), config, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffExhaustsRetries(t *testing.T) {
	sentinel := errors.New("permanent")
	config := RetryConfig{MaxRetries: 2, BaseDelay: 1, MaxDelay: 10, Multiplier: 2}

	_, err := retryWithBackoff(context.Background(), config, func() (int, error) {
		return 0, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestRetryWithBackoffStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig()

	attempts := 0
	_, err := retryWithBackoff(ctx, config, func() (int, error) {
		attempts++
		cancel()
		return 0, errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
