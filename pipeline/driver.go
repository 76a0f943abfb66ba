package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"savora/pkg/metrics"
	"savora/repository"
)

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Summary describes a finished run.
type Summary struct {
	Processed   int
	Chunks      int
	TotalStored uint64
	Duration    time.Duration
}

// Driver runs the ingestion loop: load the cursor, then embed, upsert
// and checkpoint one chunk at a time, strictly in order. A chunk is
// checkpointed only after the store acknowledged it, so a crash at any
// point resumes at the last completed chunk and re-runs overwrite by
// id instead of duplicating.
type Driver struct {
	progress  *Progress
	embedder  Embedder
	store     repository.VectorStore
	chunkSize int
	metrics   *metrics.Pipeline // optional, may be nil
	logger    *zap.Logger
}

func NewDriver(progress *Progress, embedder Embedder, store repository.VectorStore,
	chunkSize int, m *metrics.Pipeline, logger *zap.Logger) *Driver {
	return &Driver{
		progress:  progress,
		embedder:  embedder,
		store:     store,
		chunkSize: chunkSize,
		metrics:   m,
		logger:    logger,
	}
}

// Run ingests docs from wherever the previous run stopped.
func (d *Driver) Run(ctx context.Context, docs []Document) (*Summary, error) {
	started := time.Now()
	logger := d.logger.With(zap.String("run_id", uuid.NewString()))

	cursor, err := d.progress.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	start := cursor.LastIndex + 1
	processedCount := cursor.ProcessedCount
	if d.metrics != nil {
		d.metrics.CursorPosition.Set(float64(cursor.LastIndex))
	}

	if start >= len(docs) {
		logger.Info("nothing to do, all documents already stored",
			zap.Int("documents", len(docs)),
			zap.Int("start_index", start))
		return d.finish(ctx, logger, started, 0, 0)
	}

	logger.Info("starting ingestion",
		zap.Int("documents", len(docs)),
		zap.Int("start_index", start),
		zap.Int("chunk_size", d.chunkSize))

	processedThisRun := 0
	chunks := 0

	for chunkStart := start; chunkStart < len(docs); chunkStart += d.chunkSize {
		chunkEnd := min(chunkStart+d.chunkSize, len(docs))
		chunk := docs[chunkStart:chunkEnd]

		logger.Info("processing chunk",
			zap.Int("from", chunkStart),
			zap.Int("to", chunkEnd),
			zap.Int("size", len(chunk)))

		texts := make([]string, len(chunk))
		for i, doc := range chunk {
			texts[i] = doc.Text
		}

		embedStart := time.Now()
		vectors, err := d.embedder.Embed(ctx, texts)
		if err != nil {
			// Model failures are terminal. Re-save the cursor best
			// effort so even a lost file leaves a resume point.
			if saveErr := d.progress.Save(chunkStart-1, processedCount); saveErr != nil {
				logger.Warn("failed to re-save progress", zap.Error(saveErr))
			}
			return nil, fmt.Errorf("failed to embed chunk [%d:%d): %w", chunkStart, chunkEnd, err)
		}
		if d.metrics != nil {
			d.metrics.EmbedDuration.Observe(time.Since(embedStart).Seconds())
		}

		points := make([]repository.Point, len(chunk))
		for i, doc := range chunk {
			points[i] = repository.Point{Vector: vectors[i], Payload: doc.Fields}
		}

		upsertStart := time.Now()
		if err := d.store.BulkUpsert(ctx, points, chunkStart); err != nil {
			// Cursor untouched: the next run retries this same chunk.
			return nil, fmt.Errorf("failed to store chunk [%d:%d): %w", chunkStart, chunkEnd, err)
		}
		if d.metrics != nil {
			d.metrics.UpsertDuration.Observe(time.Since(upsertStart).Seconds())
		}

		processedCount += len(chunk)
		processedThisRun += len(chunk)
		chunks++

		if err := d.progress.Save(chunkEnd-1, processedCount); err != nil {
			return nil, fmt.Errorf("failed to save progress after chunk [%d:%d): %w", chunkStart, chunkEnd, err)
		}

		if d.metrics != nil {
			d.metrics.DocumentsStored.Add(float64(len(chunk)))
			d.metrics.ChunksStored.Inc()
			d.metrics.CursorPosition.Set(float64(chunkEnd - 1))
		}

		logger.Info("chunk stored",
			zap.Int("last_index", chunkEnd-1),
			zap.Int("processed_count", processedCount))
	}

	return d.finish(ctx, logger, started, processedThisRun, chunks)
}

// finish counts what the store holds, clears the cursor and reports.
func (d *Driver) finish(ctx context.Context, logger *zap.Logger, started time.Time,
	processed, chunks int) (*Summary, error) {
	total, err := d.store.Count(ctx)
	if err != nil {
		logger.Warn("failed to count stored points", zap.Error(err))
	}

	if err := d.progress.Clear(); err != nil {
		logger.Warn("failed to clear progress file", zap.Error(err))
	}

	summary := &Summary{
		Processed:   processed,
		Chunks:      chunks,
		TotalStored: total,
		Duration:    time.Since(started),
	}

	logger.Info("ingestion complete",
		zap.Int("processed", summary.Processed),
		zap.Int("chunks", summary.Chunks),
		zap.Uint64("total_stored", summary.TotalStored),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}
