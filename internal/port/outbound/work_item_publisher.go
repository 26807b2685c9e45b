package outbound

import (
	"arxivshorts/internal/domain/messaging"
	"context"
)

// WorkItemPublisher enqueues work items for the queue consumer.
type WorkItemPublisher interface {
	// PublishWorkItem publishes one work item message
	PublishWorkItem(ctx context.Context, msg *messaging.WorkItemMessage) error
}

// ListingSource discovers the work items of a batch.
type ListingSource interface {
	// FetchListing returns the items listed for batchID, in listing order
	FetchListing(ctx context.Context, batchID string) ([]*messaging.WorkItemMessage, error)
}
