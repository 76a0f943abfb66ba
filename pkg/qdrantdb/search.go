package qdrantdb

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"savora/repository"
)

// Search returns the limit nearest points to vector, best first.
func (s *Store) Search(ctx context.Context, vector []float32, limit uint64) ([]repository.Hit, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	scored, err := s.client.Query(opCtx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	hits := make([]repository.Hit, 0, len(scored))
	for _, p := range scored {
		hits = append(hits, repository.Hit{
			ID:      p.GetId().GetNum(),
			Score:   p.GetScore(),
			Payload: payloadMap(p.GetPayload()),
		})
	}
	return hits, nil
}

// Sample returns up to limit points in scroll order, payload only.
func (s *Store) Sample(ctx context.Context, limit uint32) ([]repository.Hit, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	retrieved, err := s.client.Scroll(opCtx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll collection: %w", err)
	}

	hits := make([]repository.Hit, 0, len(retrieved))
	for _, p := range retrieved {
		hits = append(hits, repository.Hit{
			ID:      p.GetId().GetNum(),
			Payload: payloadMap(p.GetPayload()),
		})
	}
	return hits, nil
}

// payloadMap converts a qdrant payload back into plain Go values.
func payloadMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := v.GetListValue().GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, valueToAny(item))
		}
		return out
	case *qdrant.Value_StructValue:
		return payloadMap(v.GetStructValue().GetFields())
	default:
		return nil
	}
}
