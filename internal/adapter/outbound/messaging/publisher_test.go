package messaging

import (
	"arxivshorts/internal/config"
	"arxivshorts/internal/domain/messaging"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type publishedMsg struct {
	subject string
	data    []byte
	msgID   string
}

type fakeJetStream struct {
	published []publishedMsg
	err       error
}

func (f *fakeJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	var msgID string
	for _, opt := range opts {
		if id, ok := opt.(nats.MsgId); ok {
			msgID = string(id)
		}
	}
	f.published = append(f.published, publishedMsg{subject: subj, data: data, msgID: msgID})
	return &nats.PubAck{Stream: "ARXIV_ITEMS", Sequence: uint64(len(f.published))}, nil
}

func workItem() *messaging.WorkItemMessage {
	return &messaging.WorkItemMessage{
		BatchID:   "2025-01-15",
		ArticleID: "2501.00001",
		Title:     "A <b>bold</b> claim",
		URL:       "https://arxiv.org/html/2501.00001",
	}
}

func TestValidateNATSConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      config.NATSConfig
		expectedErr string
	}{
		{name: "valid", config: config.NATSConfig{URL: "nats://localhost:4222", MaxReconnects: 5, ReconnectWait: time.Second}},
		{name: "tls scheme", config: config.NATSConfig{URL: "tls://nats.internal:4222"}},
		{name: "empty URL", config: config.NATSConfig{}, expectedErr: "NATS URL cannot be empty"},
		{name: "invalid scheme", config: config.NATSConfig{URL: "http://localhost:4222"}, expectedErr: "invalid NATS URL scheme"},
		{
			name:        "negative reconnects",
			config:      config.NATSConfig{URL: "nats://localhost:4222", MaxReconnects: -1},
			expectedErr: "max reconnects cannot be negative",
		},
		{
			name:        "negative wait",
			config:      config.NATSConfig{URL: "nats://localhost:4222", ReconnectWait: -time.Second},
			expectedErr: "reconnect wait cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNATSConfig(tt.config)
			if tt.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

type fakeStreamManager struct {
	infoErr error
	added   []*nats.StreamConfig
	addErr  error
}

func (f *fakeStreamManager) StreamInfo(string, ...nats.JSOpt) (*nats.StreamInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &nats.StreamInfo{}, nil
}

func (f *fakeStreamManager) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.added = append(f.added, cfg)
	return &nats.StreamInfo{Config: *cfg}, f.addErr
}

func TestEnsureStream(t *testing.T) {
	queue := config.QueueConfig{Stream: "ARXIV_ITEMS", Subject: "arxiv.items"}

	t.Run("existing stream is kept", func(t *testing.T) {
		js := &fakeStreamManager{}
		require.NoError(t, EnsureStream(js, queue))
		assert.Empty(t, js.added)
	})

	t.Run("missing stream is created as a work queue", func(t *testing.T) {
		js := &fakeStreamManager{infoErr: nats.ErrStreamNotFound}
		require.NoError(t, EnsureStream(js, queue))
		require.Len(t, js.added, 1)
		assert.Equal(t, "ARXIV_ITEMS", js.added[0].Name)
		assert.Equal(t, []string{"arxiv.items"}, js.added[0].Subjects)
		assert.Equal(t, nats.WorkQueuePolicy, js.added[0].Retention)
	})

	t.Run("lookup failure is reported", func(t *testing.T) {
		js := &fakeStreamManager{infoErr: errors.New("jetstream not enabled")}
		assert.Error(t, EnsureStream(js, queue))
	})
}

func TestNATSPublisher_PublishWorkItem(t *testing.T) {
	js := &fakeJetStream{}
	publisher, err := NewNATSPublisher(js, "arxiv.items")
	require.NoError(t, err)

	require.NoError(t, publisher.PublishWorkItem(context.Background(), workItem()))

	require.Len(t, js.published, 1)
	assert.Equal(t, "arxiv.items", js.published[0].subject)
	assert.Equal(t, "2025-01-15#2501.00001", js.published[0].msgID)

	decoded, err := messaging.DecodeWorkItemMessage(js.published[0].data)
	require.NoError(t, err)
	assert.Equal(t, "A <b>bold</b> claim", decoded.Title)
}

func TestNATSPublisher_Errors(t *testing.T) {
	_, err := NewNATSPublisher(nil, "arxiv.items")
	assert.Error(t, err)
	_, err = NewNATSPublisher(&fakeJetStream{}, "")
	assert.Error(t, err)

	publisher, err := NewNATSPublisher(&fakeJetStream{err: nats.ErrNoResponders}, "arxiv.items")
	require.NoError(t, err)
	err = publisher.PublishWorkItem(context.Background(), workItem())
	assert.ErrorIs(t, err, nats.ErrNoResponders)

	err = publisher.PublishWorkItem(context.Background(), &messaging.WorkItemMessage{ArticleID: "x"})
	assert.ErrorIs(t, err, messaging.ErrMissingBatchID)
}

func newTestPubSub(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPubSubPublisher_PublishWorkItem(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestPubSub(t)
	_, err := client.CreateTopic(ctx, "arxiv-items")
	require.NoError(t, err)

	publisher, err := NewPubSubPublisher(ctx, client, "arxiv-items")
	require.NoError(t, err)
	defer publisher.Stop()

	require.NoError(t, publisher.PublishWorkItem(ctx, workItem()))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "2025-01-15", msgs[0].Attributes[AttrBatchID])
	assert.Equal(t, "2501.00001", msgs[0].Attributes[AttrItemID])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "2025-01-15", body["batch_id"])
}

func TestPubSubPublisher_MissingTopic(t *testing.T) {
	client, _ := newTestPubSub(t)

	_, err := NewPubSubPublisher(context.Background(), client, "absent")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
