package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"savora/repository"
)

type fakeEmbedder struct {
	calls [][]string
	fn    func(texts []string) ([][]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.fn != nil {
		return f.fn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeStore struct {
	repository.VectorStore

	gotVector []float32
	gotLimit  uint64
	hits      []repository.Hit
	err       error
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, limit uint64) ([]repository.Hit, error) {
	f.gotVector = vector
	f.gotLimit = limit
	return f.hits, f.err
}

func hit(id uint64, score float32, title, text string) repository.Hit {
	return repository.Hit{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"title": title,
			"text":  text,
		},
	}
}

func TestSearcherMapsHits(t *testing.T) {
	store := &fakeStore{hits: []repository.Hit{
		hit(4, 0.91, "Pad Thai", "Rice noodles stir fried with tamarind"),
		hit(9, 0.72, "Green Curry", "Coconut milk simmered with green chili paste"),
	}}
	embedder := &fakeEmbedder{}
	searcher := NewSearcher(embedder, store, zap.NewNop())

	results, err := searcher.Search(context.Background(), "thai noodles", 3)
	require.NoError(t, err)

	require.Equal(t, [][]string{{"thai noodles"}}, embedder.calls)
	require.Equal(t, []float32{1, 0, 0}, store.gotVector)
	require.Equal(t, uint64(3), store.gotLimit)

	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Rank)
	require.Equal(t, float32(0.91), results[0].Score)
	require.Equal(t, "Pad Thai", results[0].Title)
	require.Equal(t, "Rice noodles stir fried with tamarind", results[0].Preview)
	require.Equal(t, 2, results[1].Rank)
	require.Equal(t, "Green Curry", results[1].Title)
}

func TestSearcherOrdersByScore(t *testing.T) {
	store := &fakeStore{hits: []repository.Hit{
		hit(1, 0.3, "c", ""),
		hit(2, 0.9, "a", ""),
		hit(3, 0.6, "b", ""),
	}}
	searcher := NewSearcher(&fakeEmbedder{}, store, zap.NewNop())

	results, err := searcher.Search(context.Background(), "q", 10)
	require.NoError(t, err)

	titles := make([]string, len(results))
	for i, r := range results {
		require.Equal(t, i+1, r.Rank)
		titles[i] = r.Title
	}
	require.Equal(t, []string{"a", "b", "c"}, titles)
}

func TestSearcherTruncatesPreview(t *testing.T) {
	long := strings.Repeat("x", 150)
	store := &fakeStore{hits: []repository.Hit{
		hit(1, 1, "long", long),
		hit(2, 0.5, "short", "tiny"),
	}}
	searcher := NewSearcher(&fakeEmbedder{}, store, zap.NewNop())

	results, err := searcher.Search(context.Background(), "q", 2)
	require.NoError(t, err)

	require.Equal(t, strings.Repeat("x", 100)+"...", results[0].Preview)
	require.Equal(t, "tiny", results[1].Preview)
}

func TestSearcherMissingPayloadKeys(t *testing.T) {
	store := &fakeStore{hits: []repository.Hit{
		{ID: 1, Score: 0.5, Payload: map[string]any{"cuisine": "thai"}},
	}}
	searcher := NewSearcher(&fakeEmbedder{}, store, zap.NewNop())

	results, err := searcher.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Equal(t, "", results[0].Title)
	require.Equal(t, "", results[0].Preview)
	require.Equal(t, "thai", results[0].Payload["cuisine"])
}

func TestSearcherEmbedError(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(texts []string) ([][]float32, error) {
		return nil, errors.New("model offline")
	}}
	store := &fakeStore{}
	searcher := NewSearcher(embedder, store, zap.NewNop())

	_, err := searcher.Search(context.Background(), "q", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to embed query")
	require.Nil(t, store.gotVector)
}

func TestSearcherStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("collection missing")}
	searcher := NewSearcher(&fakeEmbedder{}, store, zap.NewNop())

	_, err := searcher.Search(context.Background(), "q", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "collection missing")
}

func TestSearcherRejectsBadEmbedCount(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(texts []string) ([][]float32, error) {
		return [][]float32{{1}, {2}}, nil
	}}
	searcher := NewSearcher(embedder, &fakeStore{}, zap.NewNop())

	_, err := searcher.Search(context.Background(), "q", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected 1 query vector")
}
