package messaging

import (
	"arxivshorts/internal/domain/messaging"
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Message attributes set on every published work item.
const (
	AttrBatchID = "batch_id"
	AttrItemID  = "item_id"
)

// PubSubPublisher publishes work items to a Pub/Sub topic.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher creates a publisher on topicID. The topic must exist.
func NewPubSubPublisher(ctx context.Context, client *pubsub.Client, topicID string) (*PubSubPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil")
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("topic %s does not exist", topicID)
	}
	return &PubSubPublisher{topic: topic}, nil
}

// PublishWorkItem implements outbound.WorkItemPublisher and waits for the
// server to accept the message.
func (p *PubSubPublisher) PublishWorkItem(ctx context.Context, msg *messaging.WorkItemMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			AttrBatchID: msg.BatchID,
			AttrItemID:  msg.ResolvedItemID(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}
