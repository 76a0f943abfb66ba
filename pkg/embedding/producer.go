package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Producer turns document texts into unit-length vectors of a fixed
// dimension. Texts are sent to the model in sub-batches of batchSize,
// sequentially, and output order matches input order. Model errors are
// returned as is: inference is deterministic, so retrying here would
// only repeat the failure.
type Producer struct {
	client    Client
	batchSize int
	dim       int
	logger    *zap.Logger
}

func NewProducer(client Client, batchSize, dim int, logger *zap.Logger) *Producer {
	return &Producer{
		client:    client,
		batchSize: batchSize,
		dim:       dim,
		logger:    logger,
	}
}

// Embed returns one normalized vector per text.
func (p *Producer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))

		batch, err := p.client.GetEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch [%d:%d): %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", end-start, len(batch))
		}

		for i, v := range batch {
			if len(v) != p.dim {
				return nil, fmt.Errorf("embedding dimension mismatch at text %d: want %d, got %d", start+i, p.dim, len(v))
			}
			vectors = append(vectors, Normalize(v))
		}

		p.logger.Debug("embedded batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(texts)))
	}

	return vectors, nil
}
