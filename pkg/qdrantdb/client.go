package qdrantdb

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"savora/repository"
)

// Config holds connection, collection and retry settings for the store.
type Config struct {
	Host            string
	Port            int // gRPC port
	Collection      string
	VectorSize      uint64
	UploadBatchSize int
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	SubBatchPause   time.Duration
}

// api is the slice of the Qdrant client the store uses. Production
// wiring always passes *qdrant.Client; tests swap in a fake.
type api interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

var _ api = (*qdrant.Client)(nil)

// Store owns a Qdrant connection and the collection the pipeline
// writes to. It reconnects on demand, so callers never manage the
// underlying client themselves.
type Store struct {
	cfg    Config
	logger *zap.Logger
	client api
	dial   func() (api, error)

	// Retries counts attempts beyond the first. Optional, may be nil.
	Retries prometheus.Counter
}

var _ repository.VectorStore = (*Store)(nil)

// New dials the store's gRPC endpoint. The connection is lazy on the
// qdrant side, so an unreachable server usually surfaces at the first
// Ping rather than here.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	dial := func() (api, error) {
		return qdrant.NewClient(&qdrant.Config{
			Host: cfg.Host,
			Port: cfg.Port,
		})
	}

	client, err := dial()
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{
		cfg:    cfg,
		logger: logger,
		client: client,
		dial:   dial,
	}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping verifies the server answers health checks, retrying up to
// MaxRetries times with a fixed RetryDelay between attempts.
func (s *Store) Ping(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		opCtx, cancel := s.opCtx(ctx)
		_, err := s.client.HealthCheck(opCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				s.logger.Info("qdrant reachable after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		lastErr = err
		s.logger.Warn("qdrant health check failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", s.cfg.MaxRetries),
			zap.Error(err))

		if attempt == s.cfg.MaxRetries {
			break
		}
		if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// withRetry runs fn under the store's transient-failure policy:
// exponential backoff between attempts, with a health recheck and
// reconnect when the connection looks dead. Fatal errors abort
// immediately.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := s.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		opCtx, cancel := s.opCtx(ctx)
		err := fn(opCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				s.logger.Info("operation succeeded after retry",
					zap.String("op", op),
					zap.Int("attempt", attempt))
			}
			return nil
		}

		if classify(err) == errFatal {
			return fmt.Errorf("%s: %w", op, err)
		}

		lastErr = err
		s.logger.Warn("transient failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", s.cfg.MaxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if attempt == s.cfg.MaxRetries {
			break
		}
		if s.Retries != nil {
			s.Retries.Inc()
		}

		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		if !s.healthy(ctx) {
			s.logger.Warn("connection unhealthy, reconnecting", zap.String("op", op))
			if err := s.reconnect(); err != nil {
				s.logger.Warn("reconnect failed", zap.Error(err))
			}
		}

		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %v", op, ErrRetriesExhausted, s.cfg.MaxRetries, lastErr)
}

// healthy reports whether the current connection answers health checks.
func (s *Store) healthy(ctx context.Context) bool {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.client.HealthCheck(opCtx)
	return err == nil
}

// reconnect replaces a dead connection. The old client is closed best
// effort.
func (s *Store) reconnect() error {
	_ = s.client.Close()
	client, err := s.dial()
	if err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	s.client = client
	return nil
}

// opCtx bounds a single store call.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
