package qdrantdb

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"savora/repository"
)

// EnsureCollection creates the collection when missing. An existing
// collection is left untouched whatever its parameters, so re-runs
// keep writing into the same data.
func (s *Store) EnsureCollection(ctx context.Context) error {
	var exists bool
	err := s.withRetry(ctx, "collection exists check", func(ctx context.Context) error {
		var err error
		exists, err = s.client.CollectionExists(ctx, s.cfg.Collection)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollectionSetup, err)
	}

	if exists {
		count, err := s.Count(ctx)
		if err != nil {
			s.logger.Warn("failed to count existing points", zap.Error(err))
			return nil
		}
		s.logger.Info("collection exists",
			zap.String("collection", s.cfg.Collection),
			zap.Uint64("points", count))
		return nil
	}

	err = s.withRetry(ctx, "collection create", func(ctx context.Context) error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollectionSetup, err)
	}

	s.logger.Info("collection created",
		zap.String("collection", s.cfg.Collection),
		zap.Uint64("vector_size", s.cfg.VectorSize))
	return nil
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	count, err := s.client.Count(opCtx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// Info fetches the stats shown by the searcher banner.
func (s *Store) Info(ctx context.Context) (*repository.CollectionStats, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	info, err := s.client.GetCollectionInfo(opCtx, s.cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	stats := &repository.CollectionStats{
		Name:   s.cfg.Collection,
		Points: info.GetPointsCount(),
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		stats.VectorSize = params.GetSize()
		stats.Distance = params.GetDistance().String()
	}
	return stats, nil
}
