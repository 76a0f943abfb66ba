package qdrantdb

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var created *qdrant.CreateCollection
	fake := &fakeAPI{
		existsFn: func(ctx context.Context, name string) (bool, error) {
			require.Equal(t, "recipe_embeddings", name)
			return false, nil
		},
		createFn: func(ctx context.Context, req *qdrant.CreateCollection) error {
			created = req
			return nil
		},
	}

	s := newTestStore(fake, testConfig())

	require.NoError(t, s.EnsureCollection(context.Background()))
	require.NotNil(t, created)
	require.Equal(t, "recipe_embeddings", created.CollectionName)

	params := created.GetVectorsConfig().GetParams()
	require.Equal(t, uint64(4), params.GetSize())
	require.Equal(t, qdrant.Distance_Cosine, params.GetDistance())
}

func TestEnsureCollectionSkipsExisting(t *testing.T) {
	fake := &fakeAPI{
		existsFn: func(ctx context.Context, name string) (bool, error) {
			return true, nil
		},
		countFn: func(ctx context.Context, req *qdrant.CountPoints) (uint64, error) {
			return 7, nil
		},
	}

	s := newTestStore(fake, testConfig())

	require.NoError(t, s.EnsureCollection(context.Background()))
	require.Zero(t, fake.createCalls)
}

func TestEnsureCollectionRetriesTransientExistsCheck(t *testing.T) {
	fake := &fakeAPI{}
	fake.existsFn = func(ctx context.Context, name string) (bool, error) {
		if fake.existsCalls == 1 {
			return false, unavailable()
		}
		return false, nil
	}

	s := newTestStore(fake, testConfig())

	require.NoError(t, s.EnsureCollection(context.Background()))
	require.Equal(t, 2, fake.existsCalls)
	require.Equal(t, 1, fake.createCalls)
}

func TestEnsureCollectionCreateFailure(t *testing.T) {
	fake := &fakeAPI{
		createFn: func(ctx context.Context, req *qdrant.CreateCollection) error {
			return status.Error(codes.InvalidArgument, "bad vector size")
		},
	}

	s := newTestStore(fake, testConfig())

	err := s.EnsureCollection(context.Background())
	require.ErrorIs(t, err, ErrCollectionSetup)
	require.Equal(t, 1, fake.createCalls)
}

func TestCount(t *testing.T) {
	fake := &fakeAPI{
		countFn: func(ctx context.Context, req *qdrant.CountPoints) (uint64, error) {
			require.Equal(t, "recipe_embeddings", req.CollectionName)
			require.True(t, req.GetExact())
			return 42, nil
		},
	}

	s := newTestStore(fake, testConfig())

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), count)
}

func TestCountError(t *testing.T) {
	fake := &fakeAPI{
		countFn: func(ctx context.Context, req *qdrant.CountPoints) (uint64, error) {
			return 0, unavailable()
		},
	}

	s := newTestStore(fake, testConfig())

	_, err := s.Count(context.Background())
	require.Error(t, err)
}

func TestInfo(t *testing.T) {
	fake := &fakeAPI{
		infoFn: func(ctx context.Context, name string) (*qdrant.CollectionInfo, error) {
			return &qdrant.CollectionInfo{
				PointsCount: qdrant.PtrOf(uint64(12)),
				Config: &qdrant.CollectionConfig{
					Params: &qdrant.CollectionParams{
						VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
							Size:     768,
							Distance: qdrant.Distance_Cosine,
						}),
					},
				},
			}, nil
		},
	}

	s := newTestStore(fake, testConfig())

	stats, err := s.Info(context.Background())
	require.NoError(t, err)
	require.Equal(t, "recipe_embeddings", stats.Name)
	require.Equal(t, uint64(12), stats.Points)
	require.Equal(t, uint64(768), stats.VectorSize)
	require.Equal(t, "Cosine", stats.Distance)
}
