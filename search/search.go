package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"savora/repository"
)

// previewLen is how many characters of the matched text a Result carries.
const previewLen = 100

type Result struct {
	Rank    int            `json:"rank"`
	Score   float32        `json:"score"`
	Title   string         `json:"title"`
	Preview string         `json:"preview"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Embedder turns a batch of texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Searcher struct {
	embedder Embedder
	store    repository.VectorStore
	logger   *zap.Logger
}

func NewSearcher(embedder Embedder, store repository.VectorStore, logger *zap.Logger) *Searcher {
	return &Searcher{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Search embeds the query as a single-item batch and returns the closest
// points, best match first.
func (s *Searcher) Search(ctx context.Context, query string, limit uint64) ([]Result, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vectors))
	}

	hits, err := s.store.Search(ctx, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	results := make([]Result, len(hits))
	for i, hit := range hits {
		results[i] = Result{
			Rank:    i + 1,
			Score:   hit.Score,
			Title:   payloadString(hit.Payload, "title"),
			Preview: truncate(payloadString(hit.Payload, "text"), previewLen),
			Payload: hit.Payload,
		}
	}

	s.logger.Debug("query answered",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
