package embedding

import "context"

// Client produces one vector per input text, in input order.
// Implementations are deterministic: the same text yields the same
// vector for a fixed model, so callers may cache results safely.
type Client interface {
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}
