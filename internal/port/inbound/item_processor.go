package inbound

import (
	"arxivshorts/internal/domain/entity"
	"context"
)

// Delivery is one queue message handed to the processor.
type Delivery interface {
	// ID returns the broker-assigned message id
	ID() string

	// Data returns the raw message body
	Data() []byte

	// Ack removes the message from the queue. A failed ack may cause redelivery.
	Ack(ctx context.Context) error
}

// ProcessSummary reports the outcome of one Process call.
type ProcessSummary struct {
	Received    int
	Succeeded   int
	Failed      int
	Unaccounted int
	AckFailures int
	Counters    map[string]*entity.BatchCounter
	Triggered   []string
}

// ItemProcessor turns a set of queue deliveries into item artifacts and
// counter updates. Every delivery is acknowledged whatever its outcome.
type ItemProcessor interface {
	Process(ctx context.Context, deliveries []Delivery) ProcessSummary
}

// Consumer pulls deliveries from a queue and feeds an ItemProcessor.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}
