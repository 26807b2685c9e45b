package messaging

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// JetStream is the subset of nats.JetStreamContext the consumer provisions with.
type JetStream interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	ConsumerInfo(stream, name string, opts ...nats.JSOpt) (*nats.ConsumerInfo, error)
	AddConsumer(stream string, cfg *nats.ConsumerConfig, opts ...nats.JSOpt) (*nats.ConsumerInfo, error)
	UpdateConsumer(stream string, cfg *nats.ConsumerConfig, opts ...nats.JSOpt) (*nats.ConsumerInfo, error)
	PullSubscribe(subj, durable string, opts ...nats.SubOpt) (*nats.Subscription, error)
}

// ensureStreamExists creates the work-item stream if it doesn't exist.
func (n *NATSConsumer) ensureStreamExists() error {
	_, err := n.js.StreamInfo(n.config.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", n.config.Stream, err)
	}

	_, err = n.js.AddStream(&nats.StreamConfig{
		Name:      n.config.Stream,
		Subjects:  []string{n.config.Subject},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
		Replicas:  1,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream %s: %w", n.config.Stream, err)
	}
	return nil
}

func (n *NATSConsumer) consumerConfig() *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:       n.config.DurableName,
		FilterSubject: n.config.Subject,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       n.config.AckWait,
		MaxDeliver:    n.config.MaxDeliver,
		DeliverPolicy: nats.DeliverAllPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	}
}

// ensureDurableConsumer creates the shared pull consumer, or updates it when
// it already exists. Every worker binds to the same durable.
func (n *NATSConsumer) ensureDurableConsumer() error {
	cfg := n.consumerConfig()

	if _, err := n.js.ConsumerInfo(n.config.Stream, n.config.DurableName); err == nil {
		if _, err := n.js.UpdateConsumer(n.config.Stream, cfg); err != nil {
			return fmt.Errorf("failed to update durable consumer %s: %w", n.config.DurableName, err)
		}
		return nil
	} else if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to look up durable consumer %s: %w", n.config.DurableName, err)
	}

	if _, err := n.js.AddConsumer(n.config.Stream, cfg); err != nil {
		return fmt.Errorf("failed to create durable consumer %s: %w", n.config.DurableName, err)
	}
	return nil
}

// startSubscription binds a pull subscription to the durable consumer.
func (n *NATSConsumer) startSubscription() error {
	sub, err := n.js.PullSubscribe(
		n.config.Subject,
		n.config.DurableName,
		nats.Bind(n.config.Stream, n.config.DurableName),
	)
	if err != nil {
		return fmt.Errorf("failed to create pull subscription: %w", err)
	}
	n.sub = sub
	n.unsubscribe = sub.Unsubscribe
	return nil
}
