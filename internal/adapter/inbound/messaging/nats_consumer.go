package messaging

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/config"
	"arxivshorts/internal/port/inbound"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// pullSubscription is the subset of *nats.Subscription used to fetch messages.
type pullSubscription interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// NATSConsumer pulls work items from a JetStream durable consumer in sets and
// hands each set to the item processor.
type NATSConsumer struct {
	config      config.QueueConfig
	js          JetStream
	processor   inbound.ItemProcessor
	sub         pullSubscription
	unsubscribe func() error
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

// NewNATSConsumer creates a consumer with validated configuration.
func NewNATSConsumer(cfg config.QueueConfig, js JetStream, processor inbound.ItemProcessor) (*NATSConsumer, error) {
	if err := validateConsumerConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid consumer configuration: %w", err)
	}
	if processor == nil {
		return nil, errors.New("item processor cannot be nil")
	}
	return &NATSConsumer{
		config:    cfg,
		js:        js,
		processor: processor,
	}, nil
}

func validateConsumerConfig(cfg config.QueueConfig) error {
	if cfg.Subject == "" {
		return errors.New("subject cannot be empty")
	}
	if cfg.Stream == "" {
		return errors.New("stream cannot be empty")
	}
	if cfg.DurableName == "" {
		return errors.New("durable name cannot be empty")
	}
	if cfg.FetchBatch <= 0 {
		return errors.New("fetch batch must be positive")
	}
	if cfg.FetchWait <= 0 {
		return errors.New("fetch wait must be positive")
	}
	if cfg.AckWait <= 0 {
		return errors.New("ack wait duration must be positive")
	}
	if cfg.MaxDeliver <= 0 {
		return errors.New("max deliver count must be positive")
	}
	return nil
}

// Name implements inbound.Consumer.
func (n *NATSConsumer) Name() string {
	return "nats:" + n.config.DurableName
}

// Start provisions the stream and durable consumer, then starts the fetch loop.
func (n *NATSConsumer) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("consumer already running for subject %s", n.config.Subject)
	}
	if n.js == nil {
		return errors.New("jetstream context cannot be nil")
	}
	if err := n.ensureStreamExists(); err != nil {
		return err
	}
	if err := n.ensureDurableConsumer(); err != nil {
		return err
	}
	if err := n.startSubscription(); err != nil {
		return err
	}

	n.running = true
	n.stopCh = make(chan struct{})
	n.wg.Add(1)
	go n.fetchLoop(ctx, n.stopCh)

	slogger.Info(ctx, "NATS consumer started", slogger.Fields3(
		"stream", n.config.Stream,
		"subject", n.config.Subject,
		"durable", n.config.DurableName,
	))
	return nil
}

// Stop ends the fetch loop after the in-flight set completes.
func (n *NATSConsumer) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	stopCh := n.stopCh
	n.mu.Unlock()

	close(stopCh)
	n.wg.Wait()

	if n.unsubscribe != nil {
		if err := n.unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
			return fmt.Errorf("failed to unsubscribe: %w", err)
		}
	}
	slogger.Info(ctx, "NATS consumer stopped", nil)
	return nil
}

func (n *NATSConsumer) fetchLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer n.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if _, err := n.FetchAndProcess(ctx); err != nil {
			slogger.Warn(ctx, "Fetch failed", slogger.Field("error", err.Error()))
			select {
			case <-time.After(time.Second):
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// FetchAndProcess fetches up to one set of messages and processes it. An
// empty fetch window is not an error.
func (n *NATSConsumer) FetchAndProcess(ctx context.Context) (inbound.ProcessSummary, error) {
	msgs, err := n.sub.Fetch(n.config.FetchBatch, nats.MaxWait(n.config.FetchWait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return inbound.ProcessSummary{}, nil
		}
		return inbound.ProcessSummary{}, err
	}
	if len(msgs) == 0 {
		return inbound.ProcessSummary{}, nil
	}

	deliveries := make([]inbound.Delivery, len(msgs))
	for i, msg := range msgs {
		deliveries[i] = newNATSDelivery(msg)
	}
	return n.processor.Process(ctx, deliveries), nil
}

// natsDelivery adapts a JetStream message to inbound.Delivery.
type natsDelivery struct {
	msg *nats.Msg
	ack func(opts ...nats.AckOpt) error
}

func newNATSDelivery(msg *nats.Msg) *natsDelivery {
	return &natsDelivery{msg: msg, ack: msg.Ack}
}

// ID returns the stream sequence, or the publisher's message id when the
// message carries no JetStream metadata.
func (d *natsDelivery) ID() string {
	if meta, err := d.msg.Metadata(); err == nil {
		return strconv.FormatUint(meta.Sequence.Stream, 10)
	}
	if d.msg.Header != nil {
		return d.msg.Header.Get(nats.MsgIdHdr)
	}
	return ""
}

func (d *natsDelivery) Data() []byte {
	return d.msg.Data
}

func (d *natsDelivery) Ack(ctx context.Context) error {
	return d.ack(nats.Context(ctx))
}
