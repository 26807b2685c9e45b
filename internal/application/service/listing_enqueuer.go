package service

import (
	"arxivshorts/internal/application/common/logging"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"time"
)

// BatchDateLayout is the layout of date-based batch ids.
const BatchDateLayout = "2006-01-02"

var ErrNothingPublished = errors.New("no work items were published")

// EnqueueSummary reports one producer run.
type EnqueueSummary struct {
	BatchID   string
	Listed    int
	Published int
	Failed    int
}

// ListingEnqueuer publishes the day's listing as work items.
type ListingEnqueuer struct {
	source    outbound.ListingSource
	publisher outbound.WorkItemPublisher
	maxItems  int
	location  *time.Location
	now       func() time.Time
}

// NewListingEnqueuer creates the producer. Batch ids are dates in location.
func NewListingEnqueuer(
	source outbound.ListingSource,
	publisher outbound.WorkItemPublisher,
	maxItems int,
	location *time.Location,
) *ListingEnqueuer {
	if location == nil {
		location = time.UTC
	}
	return &ListingEnqueuer{
		source:    source,
		publisher: publisher,
		maxItems:  maxItems,
		location:  location,
		now:       time.Now,
	}
}

// TodayBatchID returns the batch id for the current date.
func (e *ListingEnqueuer) TodayBatchID() string {
	return e.now().In(e.location).Format(BatchDateLayout)
}

// Enqueue publishes up to maxItems listed items for batchID, or for today
// when batchID is empty.
func (e *ListingEnqueuer) Enqueue(ctx context.Context, batchID string) (*EnqueueSummary, error) {
	if batchID == "" {
		batchID = e.TodayBatchID()
	}
	ctx = logging.WithBatchID(ctx, batchID)

	items, err := e.source.FetchListing(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	summary := &EnqueueSummary{BatchID: batchID, Listed: len(items)}
	if e.maxItems > 0 && len(items) > e.maxItems {
		items = items[:e.maxItems]
	}

	for _, item := range items {
		item.BatchID = batchID
		if err := e.publisher.PublishWorkItem(ctx, item); err != nil {
			summary.Failed++
			slogger.Warn(ctx, "Failed to publish work item", slogger.Fields2(
				"item_id", item.ResolvedItemID(),
				"error", err.Error(),
			))
			continue
		}
		summary.Published++
	}

	slogger.Info(ctx, "Enqueued listing", slogger.Fields3(
		"listed", summary.Listed,
		"published", summary.Published,
		"failed", summary.Failed,
	))
	if summary.Published == 0 && summary.Failed > 0 {
		return summary, ErrNothingPublished
	}
	return summary, nil
}
