package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var cacheBucket = []byte("embeddings")

// Cache wraps a Client with an on-disk vector cache keyed by model and
// text. Embeddings are deterministic for a fixed model, so entries
// never go stale. Cache failures degrade to plain model calls instead
// of failing the run.
type Cache struct {
	client Client
	db     *bolt.DB
	model  string
	logger *zap.Logger

	// Optional counters, may be nil.
	Hits   prometheus.Counter
	Misses prometheus.Counter
}

func NewCache(client Client, path, model string, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{client: client, db: db, model: model, logger: logger}, nil
}

func (c *Cache) key(text string) []byte {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum(nil)
}

func (c *Cache) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []int

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		for i, text := range texts {
			raw := b.Get(c.key(text))
			if raw == nil {
				missing = append(missing, i)
				continue
			}
			var v []float32
			if err := json.Unmarshal(raw, &v); err != nil {
				// damaged entry, refetch
				missing = append(missing, i)
				continue
			}
			vectors[i] = v
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		missing = missing[:0]
		for i := range texts {
			missing = append(missing, i)
			vectors[i] = nil
		}
	}

	if c.Hits != nil {
		c.Hits.Add(float64(len(texts) - len(missing)))
	}
	if c.Misses != nil {
		c.Misses.Add(float64(len(missing)))
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}

	fetched, err := c.client.GetEmbeddings(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(batch) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(fetched))
	}

	for j, i := range missing {
		vectors[i] = fetched[j]
	}

	if err := c.store(batch, fetched); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	return vectors, nil
}

func (c *Cache) store(texts []string, vectors [][]float32) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		for i, text := range texts {
			raw, err := json.Marshal(vectors[i])
			if err != nil {
				return err
			}
			if err := b.Put(c.key(text), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

var _ Client = (*Cache)(nil)
