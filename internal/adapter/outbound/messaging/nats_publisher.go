package messaging

import (
	"arxivshorts/internal/domain/messaging"
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// JetStreamPublisher is the subset of nats.JetStreamContext used for publishing.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes work items to a JetStream subject.
type NATSPublisher struct {
	js      JetStreamPublisher
	subject string
}

// NewNATSPublisher creates a work-item publisher.
func NewNATSPublisher(js JetStreamPublisher, subject string) (*NATSPublisher, error) {
	if js == nil {
		return nil, errors.New("jetstream context cannot be nil")
	}
	if subject == "" {
		return nil, errors.New("subject cannot be empty")
	}
	return &NATSPublisher{js: js, subject: subject}, nil
}

// PublishWorkItem implements outbound.WorkItemPublisher. The record id is used
// as the JetStream message id so a republished item within the duplicate
// window is stored once.
func (p *NATSPublisher) PublishWorkItem(ctx context.Context, msg *messaging.WorkItemMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	_, err = p.js.Publish(p.subject, data,
		nats.Context(ctx),
		nats.MsgId(msg.BatchID+"#"+msg.ResolvedItemID()),
	)
	if err != nil {
		return fmt.Errorf("failed to publish work item: %w", err)
	}
	return nil
}
