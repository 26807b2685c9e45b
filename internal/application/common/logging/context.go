package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	BatchIDKey       contextKey = "batch_id"
	ItemIDKey        contextKey = "item_id"
)

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithBatchID scopes log entries to a batch.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

// WithItemID scopes log entries to a single work item.
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, ItemIDKey, itemID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, CorrelationIDKey)
}

// correlationID returns the id carried by ctx, or a fresh one per entry.
func correlationID(ctx context.Context) string {
	if id := stringFromContext(ctx, CorrelationIDKey); id != "" {
		return id
	}
	return uuid.NewString()
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
