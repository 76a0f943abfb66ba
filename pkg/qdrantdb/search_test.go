package qdrantdb

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
)

func TestSearchMapsHits(t *testing.T) {
	var got *qdrant.QueryPoints
	fake := &fakeAPI{
		queryFn: func(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
			got = req
			return []*qdrant.ScoredPoint{
				{
					Id:    qdrant.NewIDNum(3),
					Score: 0.91,
					Payload: qdrant.NewValueMap(map[string]any{
						"title":        "Pasta",
						"recipe_index": int64(3),
					}),
				},
				{
					Id:    qdrant.NewIDNum(8),
					Score: 0.72,
					Payload: qdrant.NewValueMap(map[string]any{
						"title":        "Soup",
						"recipe_index": int64(8),
					}),
				},
			}, nil
		},
	}

	s := newTestStore(fake, testConfig())

	hits, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)

	require.Equal(t, "recipe_embeddings", got.CollectionName)
	require.Equal(t, uint64(3), got.GetLimit())
	require.True(t, got.GetWithPayload().GetEnable())

	require.Len(t, hits, 2)
	require.Equal(t, uint64(3), hits[0].ID)
	require.InDelta(t, 0.91, hits[0].Score, 1e-6)
	require.Equal(t, "Pasta", hits[0].Payload["title"])
	require.Equal(t, int64(3), hits[0].Payload["recipe_index"])
	require.Equal(t, uint64(8), hits[1].ID)
}

func TestSearchError(t *testing.T) {
	fake := &fakeAPI{
		queryFn: func(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
			return nil, unavailable()
		},
	}

	s := newTestStore(fake, testConfig())

	_, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 3)
	require.Error(t, err)
}

func TestSampleScrollsPayloadOnly(t *testing.T) {
	var got *qdrant.ScrollPoints
	fake := &fakeAPI{
		scrollFn: func(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
			got = req
			return []*qdrant.RetrievedPoint{
				{
					Id:      qdrant.NewIDNum(0),
					Payload: qdrant.NewValueMap(map[string]any{"title": "Stew"}),
				},
			}, nil
		},
	}

	s := newTestStore(fake, testConfig())

	hits, err := s.Sample(context.Background(), 3)
	require.NoError(t, err)

	require.Equal(t, uint32(3), got.GetLimit())
	require.True(t, got.GetWithPayload().GetEnable())
	require.False(t, got.GetWithVectors().GetEnable())

	require.Len(t, hits, 1)
	require.Equal(t, uint64(0), hits[0].ID)
	require.Equal(t, "Stew", hits[0].Payload["title"])
}

func TestPayloadMapConvertsAllKinds(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"str":    {Kind: &qdrant.Value_StringValue{StringValue: "a"}},
		"int":    {Kind: &qdrant.Value_IntegerValue{IntegerValue: 7}},
		"double": {Kind: &qdrant.Value_DoubleValue{DoubleValue: 1.5}},
		"bool":   {Kind: &qdrant.Value_BoolValue{BoolValue: true}},
		"list": {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{
			Values: []*qdrant.Value{
				{Kind: &qdrant.Value_StringValue{StringValue: "x"}},
				{Kind: &qdrant.Value_IntegerValue{IntegerValue: 2}},
			},
		}}},
		"nested": {Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{
			Fields: map[string]*qdrant.Value{
				"inner": {Kind: &qdrant.Value_StringValue{StringValue: "y"}},
			},
		}}},
	}

	out := payloadMap(payload)

	require.Equal(t, "a", out["str"])
	require.Equal(t, int64(7), out["int"])
	require.Equal(t, 1.5, out["double"])
	require.Equal(t, true, out["bool"])
	require.Equal(t, []any{"x", int64(2)}, out["list"])
	require.Equal(t, map[string]any{"inner": "y"}, out["nested"])
}

func TestPayloadMapEmpty(t *testing.T) {
	require.Nil(t, payloadMap(nil))
	require.Nil(t, payloadMap(map[string]*qdrant.Value{}))
}
