package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// cursorVersion is the current progress file format. Files without a
// version field predate versioning and read as version 1.
const cursorVersion = 1

// Cursor marks the last durably stored document. LastIndex is -1 when
// nothing has been stored yet.
type Cursor struct {
	Version        int `json:"version"`
	LastIndex      int `json:"last_processed_index"`
	ProcessedCount int `json:"processed_count"`
}

// ErrCorruptCursor means the progress file exists but cannot be
// trusted. Callers stop rather than guess a resume point.
var ErrCorruptCursor = errors.New("corrupt progress file")

// Counter is the fallback source of progress when no file exists.
// The vector store satisfies it.
type Counter interface {
	Count(ctx context.Context) (uint64, error)
}

// Progress persists the pipeline cursor between runs.
type Progress struct {
	path    string
	counter Counter
	logger  *zap.Logger
}

func NewProgress(path string, counter Counter, logger *zap.Logger) *Progress {
	return &Progress{path: path, counter: counter, logger: logger}
}

// Load returns the resume cursor. A present file wins; a missing file
// falls back to the store count. N stored points mean documents [0,N)
// are durable, so the inferred cursor is (N-1, N); an empty store
// starts from scratch at (-1, 0).
func (p *Progress) Load(ctx context.Context) (Cursor, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return p.infer(ctx), nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrCorruptCursor, err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrCorruptCursor, err)
	}
	if c.Version == 0 {
		// Legacy two-field files predate the version field.
		c.Version = cursorVersion
	}
	if c.Version != cursorVersion {
		return Cursor{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptCursor, c.Version)
	}
	if c.LastIndex < -1 || c.ProcessedCount < 0 {
		return Cursor{}, fmt.Errorf("%w: negative progress", ErrCorruptCursor)
	}

	p.logger.Info("resuming from progress file",
		zap.Int("last_processed_index", c.LastIndex),
		zap.Int("processed_count", c.ProcessedCount))
	return c, nil
}

// infer derives progress from the store when no file survived. The
// pipeline writes contiguously from index 0, so the point count
// doubles as the next index to process. Count failures are treated as
// an empty store: worst case the run re-embeds data it already has,
// and upserts by id keep that harmless.
func (p *Progress) infer(ctx context.Context) Cursor {
	count, err := p.counter.Count(ctx)
	if err != nil {
		p.logger.Warn("no progress file and count failed, starting from scratch", zap.Error(err))
		return Cursor{Version: cursorVersion, LastIndex: -1}
	}
	if count == 0 {
		p.logger.Info("no progress file, starting from scratch")
		return Cursor{Version: cursorVersion, LastIndex: -1}
	}

	p.logger.Warn("no progress file, inferring resume point from store count",
		zap.Uint64("points", count))
	return Cursor{
		Version:        cursorVersion,
		LastIndex:      int(count) - 1,
		ProcessedCount: int(count),
	}
}

// Save records the cursor atomically via a temp file rename, so a
// crash leaves either the old record or the new one, never a torn
// write.
func (p *Progress) Save(lastIndex, processedCount int) error {
	c := Cursor{
		Version:        cursorVersion,
		LastIndex:      lastIndex,
		ProcessedCount: processedCount,
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to rename progress: %w", err)
	}
	return nil
}

// Clear removes the progress file. A missing file is not an error.
func (p *Progress) Clear() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove progress file: %w", err)
	}
	return nil
}
