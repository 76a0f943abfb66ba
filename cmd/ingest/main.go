package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"savora/config"
	"savora/pipeline"
	"savora/pkg/embedding"
	"savora/pkg/logging"
	"savora/pkg/metrics"
	"savora/pkg/qdrantdb"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// =========
	// Config
	// =========
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// =========
	// Logging
	// =========
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========
	// Metrics
	// =========
	reg := prometheus.NewRegistry()
	m := metrics.NewPipeline(reg)
	if cfg.Metrics.Port > 0 {
		metrics.Serve(reg, cfg.Metrics.Port, logger)
	}

	// =========
	// Documents
	// =========
	docs, err := pipeline.LoadDocuments(cfg.Pipeline.InputPath)
	if err != nil {
		logger.Fatal("failed to load documents",
			zap.String("path", cfg.Pipeline.InputPath),
			zap.Error(err),
		)
	}
	logger.Info("documents loaded",
		zap.String("path", cfg.Pipeline.InputPath),
		zap.Int("count", len(docs)),
	)

	// =========
	// Embedding Client
	// =========
	client, closeCache, err := newEmbeddingClient(cfg, m, logger)
	if err != nil {
		logger.Fatal("failed to create embedding client", zap.Error(err))
	}
	defer closeCache()

	producer := embedding.NewProducer(client, cfg.Embedding.BatchSize, int(cfg.Qdrant.VectorSize), logger)

	// =========
	// Qdrant vector
	// =========
	store, err := qdrantdb.New(storeConfig(cfg), logger)
	if err != nil {
		logger.Fatal("failed to create qdrant client", zap.Error(err))
	}
	defer store.Close()
	store.Retries = m.UpsertRetries

	if err := store.Ping(ctx); err != nil {
		fail(logger, err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		fail(logger, err)
	}

	// =========
	// Pipeline
	// =========
	progress := pipeline.NewProgress(cfg.Pipeline.ProgressPath, store, logger)
	driver := pipeline.NewDriver(progress, producer, store, cfg.Pipeline.ChunkSize, m, logger)

	summary, err := driver.Run(ctx, docs)
	if err != nil {
		fail(logger, err)
	}

	fmt.Printf("Stored %d new documents in %d chunks (%d total in collection) in %s\n",
		summary.Processed, summary.Chunks, summary.TotalStored,
		summary.Duration.Round(time.Millisecond))
}

// newEmbeddingClient builds the configured backend, wrapped in the
// on-disk cache when one is configured.
func newEmbeddingClient(cfg *config.Config, m *metrics.Pipeline, logger *zap.Logger) (embedding.Client, func(), error) {
	var client embedding.Client
	switch cfg.Embedding.Provider {
	case "openai":
		c, err := embedding.NewOpenAI(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
		if err != nil {
			return nil, nil, err
		}
		client = c
	default:
		client = embedding.NewBgeBaseV15(cfg.Embedding.BaseURL)
	}

	if cfg.Embedding.CachePath == "" {
		return client, func() {}, nil
	}

	cache, err := embedding.NewCache(client, cfg.Embedding.CachePath, cfg.Embedding.Model, logger)
	if err != nil {
		return nil, nil, err
	}
	cache.Hits = m.CacheHits
	cache.Misses = m.CacheMisses
	return cache, func() { cache.Close() }, nil
}

func storeConfig(cfg *config.Config) qdrantdb.Config {
	q := cfg.Qdrant
	return qdrantdb.Config{
		Host:            q.Host,
		Port:            q.GRPCPort,
		Collection:      q.Collection,
		VectorSize:      q.VectorSize,
		UploadBatchSize: q.UploadBatchSize,
		Timeout:         time.Duration(q.TimeoutSec) * time.Second,
		MaxRetries:      q.MaxRetries,
		RetryDelay:      time.Duration(q.RetryDelaySec) * time.Second,
		InitialBackoff:  time.Duration(q.InitialBackoffSec) * time.Second,
		MaxBackoff:      time.Duration(q.MaxBackoffSec) * time.Second,
		SubBatchPause:   time.Duration(q.SubBatchPauseMS) * time.Millisecond,
	}
}

func fail(logger *zap.Logger, err error) {
	if hint := remediation(err); hint != "" {
		logger.Error(hint)
	}
	logger.Fatal("ingestion failed", zap.Error(err))
}

// remediation maps well-known failures to operator hints.
func remediation(err error) string {
	switch {
	case errors.Is(err, qdrantdb.ErrUnavailable):
		return "qdrant is unreachable, start it with: qdrantctl start"
	case errors.Is(err, qdrantdb.ErrCollectionSetup):
		return "collection setup failed, check the container: docker logs qdrant_local"
	case errors.Is(err, qdrantdb.ErrRetriesExhausted):
		return "qdrant kept failing mid-run, progress is saved, rerun ingest to resume"
	case errors.Is(err, context.DeadlineExceeded):
		return "calls are timing out, lower embedding.batch_size or raise qdrant.timeout_sec"
	case errors.Is(err, context.Canceled):
		return "interrupted, progress is saved, rerun ingest to resume"
	default:
		return ""
	}
}
