package outbound

import (
	"arxivshorts/internal/domain/entity"
	"context"
)

// ResultRepository persists loaded result records.
type ResultRepository interface {
	// Upsert writes the record keyed by (batch id, item id), overwriting any previous value
	Upsert(ctx context.Context, record *entity.ResultRecord) error

	// ListByBatch returns the records of a batch ordered by item id
	ListByBatch(ctx context.Context, batchID string) ([]*entity.ResultRecord, error)
}
