package outbound

import (
	"arxivshorts/internal/domain/entity"
	"context"
	"errors"
)

var ErrCounterNotFound = errors.New("batch counter not found")

// CounterRepository stores per-batch completion counters. Every mutation is a
// single atomic storage operation and there is no decrement.
type CounterRepository interface {
	// Add atomically adds the deltas to the batch counter, creating it with zero
	// counts when absent, and returns the counter after the add
	Add(ctx context.Context, batchID string, successDelta, failureDelta int64) (*entity.BatchCounter, error)

	// RecordDispositions records item outcomes and adds only the outcomes of
	// items never recorded before, in one atomic operation. Returns the counter
	// after the add.
	RecordDispositions(
		ctx context.Context,
		batchID string,
		dispositions []entity.ItemDisposition,
	) (*entity.BatchCounter, error)

	// Get returns the current counter or ErrCounterNotFound
	Get(ctx context.Context, batchID string) (*entity.BatchCounter, error)
}
