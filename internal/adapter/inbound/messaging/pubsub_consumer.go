package messaging

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/port/inbound"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSubConsumerConfig holds Pub/Sub consumer settings.
type PubSubConsumerConfig struct {
	SubscriptionID         string
	SetSize                int
	Linger                 time.Duration
	MaxOutstandingMessages int
}

// PubSubConsumer streams messages from a Pub/Sub subscription and groups them
// into sets of up to SetSize, flushing a partial set after Linger.
type PubSubConsumer struct {
	config    PubSubConsumerConfig
	sub       *pubsub.Subscription
	processor inbound.ItemProcessor
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewPubSubConsumer creates a consumer on an existing subscription.
func NewPubSubConsumer(
	client *pubsub.Client,
	cfg PubSubConsumerConfig,
	processor inbound.ItemProcessor,
) (*PubSubConsumer, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil")
	}
	if cfg.SubscriptionID == "" {
		return nil, errors.New("subscription id cannot be empty")
	}
	if processor == nil {
		return nil, errors.New("item processor cannot be nil")
	}
	if cfg.SetSize <= 0 {
		cfg.SetSize = 10
	}
	if cfg.Linger <= 0 {
		cfg.Linger = 2 * time.Second
	}

	sub := client.Subscription(cfg.SubscriptionID)
	if cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	}
	return &PubSubConsumer{config: cfg, sub: sub, processor: processor}, nil
}

// Name implements inbound.Consumer.
func (c *PubSubConsumer) Name() string {
	return "pubsub:" + c.config.SubscriptionID
}

// Start checks the subscription and begins receiving in the background.
func (c *PubSubConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("consumer already running for subscription %s", c.config.SubscriptionID)
	}

	exists, err := c.sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check subscription existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("subscription %s does not exist", c.config.SubscriptionID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	incoming := make(chan *pubsubDelivery, c.config.SetSize)
	go c.batchLoop(runCtx, incoming)
	go func() {
		err := c.sub.Receive(runCtx, func(_ context.Context, msg *pubsub.Message) {
			select {
			case incoming <- &pubsubDelivery{msg: msg}:
			case <-runCtx.Done():
				msg.Nack()
			}
		})
		if err != nil {
			slogger.Error(ctx, "Pub/Sub receive stopped", slogger.Field("error", err.Error()))
		}
		close(incoming)
	}()

	slogger.Info(ctx, "Pub/Sub consumer started", slogger.Fields2(
		"subscription", c.config.SubscriptionID,
		"set_size", c.config.SetSize,
	))
	return nil
}

// Stop cancels receiving and waits for the last set to be processed.
func (c *PubSubConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	slogger.Info(ctx, "Pub/Sub consumer stopped", nil)
	return nil
}

func (c *PubSubConsumer) batchLoop(ctx context.Context, incoming <-chan *pubsubDelivery) {
	defer close(c.done)

	set := make([]inbound.Delivery, 0, c.config.SetSize)
	timer := time.NewTimer(c.config.Linger)
	timer.Stop()

	flush := func() {
		if len(set) == 0 {
			return
		}
		// Processing outlives cancellation so received messages are acknowledged.
		c.processor.Process(context.WithoutCancel(ctx), set)
		set = make([]inbound.Delivery, 0, c.config.SetSize)
	}

	for {
		select {
		case d, ok := <-incoming:
			if !ok {
				timer.Stop()
				flush()
				return
			}
			if len(set) == 0 {
				timer.Reset(c.config.Linger)
			}
			set = append(set, d)
			if len(set) >= c.config.SetSize {
				timer.Stop()
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}

// pubsubDelivery adapts a Pub/Sub message to inbound.Delivery.
type pubsubDelivery struct {
	msg *pubsub.Message
}

func (d *pubsubDelivery) ID() string   { return d.msg.ID }
func (d *pubsubDelivery) Data() []byte { return d.msg.Data }

func (d *pubsubDelivery) Ack(ctx context.Context) error {
	status, err := d.msg.AckWithResult().Get(ctx)
	if err != nil {
		return err
	}
	if status != pubsub.AcknowledgeStatusSuccess {
		return fmt.Errorf("ack rejected with status %d", status)
	}
	return nil
}
