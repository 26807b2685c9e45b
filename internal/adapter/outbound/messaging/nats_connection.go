package messaging

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/config"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	natsConnectionTimeout = 5 * time.Second

	// Work items older than this are dropped by the stream.
	streamMaxAge = 72 * time.Hour
)

// ValidateNATSConfig checks connection settings before dialing.
func ValidateNATSConfig(cfg config.NATSConfig) error {
	if cfg.URL == "" {
		return errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") && !strings.HasPrefix(cfg.URL, "tls://") {
		return errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return errors.New("reconnect wait cannot be negative")
	}
	return nil
}

// ConnectNATS dials the server and opens a JetStream context.
func ConnectNATS(cfg config.NATSConfig, name string) (*nats.Conn, nats.JetStreamContext, error) {
	if err := ValidateNATSConfig(cfg); err != nil {
		return nil, nil, err
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slogger.InfoNoCtx("NATS reconnected", slogger.Field("url", c.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			fields := slogger.Fields{}
			if err != nil {
				fields["error"] = err.Error()
			}
			slogger.WarnNoCtx("NATS disconnected", fields)
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return conn, js, nil
}

// WorkQueueStreamConfig returns the stream holding work items. Each message is
// removed once any consumer acknowledges it.
func WorkQueueStreamConfig(queue config.QueueConfig) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      queue.Stream,
		Subjects:  []string{queue.Subject},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
		MaxAge:    streamMaxAge,
		Replicas:  1,
	}
}

// StreamManager is the subset of nats.JetStreamContext used to provision streams.
type StreamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStream creates the work-item stream when it does not exist yet.
func EnsureStream(js StreamManager, queue config.QueueConfig) error {
	if _, err := js.StreamInfo(queue.Stream); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", queue.Stream, err)
	}

	if _, err := js.AddStream(WorkQueueStreamConfig(queue)); err != nil {
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil
		}
		return fmt.Errorf("failed to create stream %s: %w", queue.Stream, err)
	}
	return nil
}
