package entity

import (
	"arxivshorts/internal/domain/valueobject"
	"time"
)

// BatchCounter holds the completion counts of a batch. Counts only grow.
type BatchCounter struct {
	batchID      string
	successCount int64
	failureCount int64
	updatedAt    time.Time
}

// RestoreBatchCounter creates a BatchCounter from stored data.
func RestoreBatchCounter(batchID string, successCount, failureCount int64, updatedAt time.Time) *BatchCounter {
	return &BatchCounter{
		batchID:      batchID,
		successCount: successCount,
		failureCount: failureCount,
		updatedAt:    updatedAt,
	}
}

// BatchID returns the batch id.
func (c *BatchCounter) BatchID() string { return c.batchID }

// SuccessCount returns the number of items that produced an artifact.
func (c *BatchCounter) SuccessCount() int64 { return c.successCount }

// FailureCount returns the number of items that failed.
func (c *BatchCounter) FailureCount() int64 { return c.failureCount }

// UpdatedAt returns the time of the last add.
func (c *BatchCounter) UpdatedAt() time.Time { return c.updatedAt }

// Total returns success plus failure.
func (c *BatchCounter) Total() int64 { return c.successCount + c.failureCount }

// Reached reports whether the batch has at least threshold terminal dispositions.
func (c *BatchCounter) Reached(threshold int) bool {
	return threshold > 0 && c.Total() >= int64(threshold)
}

// ItemDisposition is the outcome of one item, recorded once per (batch, item).
type ItemDisposition struct {
	ItemID      string
	Disposition valueobject.Disposition
}

// CountDispositions returns the success and failure deltas of a disposition set.
func CountDispositions(dispositions []ItemDisposition) (success, failure int64) {
	for _, d := range dispositions {
		if d.Disposition.Succeeded() {
			success++
		} else {
			failure++
		}
	}
	return success, failure
}

// DedupeDispositions keeps the first disposition seen for each item id.
func DedupeDispositions(dispositions []ItemDisposition) []ItemDisposition {
	seen := make(map[string]struct{}, len(dispositions))
	out := make([]ItemDisposition, 0, len(dispositions))
	for _, d := range dispositions {
		if _, ok := seen[d.ItemID]; ok {
			continue
		}
		seen[d.ItemID] = struct{}{}
		out = append(out, d)
	}
	return out
}
