package embedding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, inner Client) *Cache {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewCache(inner, path, "test-model", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheServesRepeatsWithoutModelCalls(t *testing.T) {
	fake := &fakeClient{fn: func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = vectorFor(text)
		}
		return out, nil
	}}
	c := newTestCache(t, fake)

	first, err := c.GetEmbeddings(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, fake.batches, 1)

	second, err := c.GetEmbeddings(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Equal(t, first, second)
	// All served from the cache, no extra model call.
	require.Len(t, fake.batches, 1)
}

func TestCacheFetchesOnlyMisses(t *testing.T) {
	fake := &fakeClient{fn: func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = vectorFor(text)
		}
		return out, nil
	}}
	c := newTestCache(t, fake)

	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "hits"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "misses"})
	c.Hits, c.Misses = hits, misses

	_, err := c.GetEmbeddings(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)

	vectors, err := c.GetEmbeddings(context.Background(), []string{"bb", "ccc", "a"})
	require.NoError(t, err)

	// Only the unseen text goes to the model.
	require.Equal(t, []string{"ccc"}, fake.batches[1])

	// Assembly keeps input order across hits and misses.
	require.Equal(t, vectorFor("bb"), vectors[0])
	require.Equal(t, vectorFor("ccc"), vectors[1])
	require.Equal(t, vectorFor("a"), vectors[2])

	require.Equal(t, 2.0, testutil.ToFloat64(hits))
	require.Equal(t, 3.0, testutil.ToFloat64(misses))
}

func TestCacheKeyedByModel(t *testing.T) {
	fake := &fakeClient{fn: func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = vectorFor(text)
		}
		return out, nil
	}}

	path := filepath.Join(t.TempDir(), "cache.db")

	a, err := NewCache(fake, path, "model-a", zap.NewNop())
	require.NoError(t, err)
	_, err = a.GetEmbeddings(context.Background(), []string{"text"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := NewCache(fake, path, "model-b", zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	_, err = b.GetEmbeddings(context.Background(), []string{"text"})
	require.NoError(t, err)

	// Same text under a different model is a miss.
	require.Len(t, fake.batches, 2)
}

func TestCachePropagatesModelError(t *testing.T) {
	fake := &fakeClient{fn: func(texts []string) ([][]float32, error) {
		return nil, context.DeadlineExceeded
	}}
	c := newTestCache(t, fake)

	_, err := c.GetEmbeddings(context.Background(), []string{"a"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
