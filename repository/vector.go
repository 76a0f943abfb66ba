package repository

import "context"

// VectorStore is what the pipeline and searcher need from the vector
// database.
type VectorStore interface {
	Ping(ctx context.Context) error
	EnsureCollection(ctx context.Context) error
	BulkUpsert(ctx context.Context, points []Point, idOffset int) error
	Count(ctx context.Context) (uint64, error)
	Search(ctx context.Context, vector []float32, limit uint64) ([]Hit, error)
	Sample(ctx context.Context, limit uint32) ([]Hit, error)
	Info(ctx context.Context) (*CollectionStats, error)
}

// Point is one vector plus its payload fields. It carries no id: the
// store derives ids from the caller's offset.
type Point struct {
	Vector  []float32
	Payload map[string]any
}

// Hit is one retrieved point with its similarity score and payload.
type Hit struct {
	ID      uint64
	Score   float32
	Payload map[string]any
}

// CollectionStats is the human-facing summary of a collection.
type CollectionStats struct {
	Name       string
	Points     uint64
	VectorSize uint64
	Distance   string
}
