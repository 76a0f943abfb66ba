package qdrantdb

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"savora/repository"
)

// BulkUpsert writes points in sub-batches of UploadBatchSize with
// wait=true. The id of points[i] is idOffset+i, and every payload
// gains a recipe_index field carrying that id. Transient failures are
// retried per sub-batch; a fatal failure or an exhausted retry budget
// aborts the whole call. Successive sub-batches are separated by
// SubBatchPause to keep a small local server responsive.
func (s *Store) BulkUpsert(ctx context.Context, points []repository.Point, idOffset int) error {
	for start := 0; start < len(points); start += s.cfg.UploadBatchSize {
		end := min(start+s.cfg.UploadBatchSize, len(points))

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			id := idOffset + i
			payload := make(map[string]any, len(points[i].Payload)+1)
			for k, v := range points[i].Payload {
				payload[k] = v
			}
			payload["recipe_index"] = int64(id)

			batch = append(batch, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(id)),
				Vectors: qdrant.NewVectorsDense(points[i].Vector),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		op := fmt.Sprintf("upsert batch [%d:%d)", idOffset+start, idOffset+end)
		err := s.withRetry(ctx, op, func(ctx context.Context) error {
			_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: s.cfg.Collection,
				Points:         batch,
				Wait:           qdrant.PtrOf(true),
			})
			return err
		})
		if err != nil {
			return err
		}

		s.logger.Debug("sub-batch stored",
			zap.Int("from", idOffset+start),
			zap.Int("to", idOffset+end))

		if end < len(points) {
			if err := sleep(ctx, s.cfg.SubBatchPause); err != nil {
				return err
			}
		}
	}
	return nil
}
