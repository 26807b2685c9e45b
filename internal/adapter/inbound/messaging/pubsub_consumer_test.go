package messaging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestSubscription(t *testing.T, publish int) (*pubsub.Client, *pstest.Server) {
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

	topic, err := client.CreateTopic(ctx, "arxiv-items")
	require.NoError(t, err)
	_, err = client.CreateSubscription(ctx, "arxiv-items-worker", pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	require.NoError(t, err)

	for i := 0; i < publish; i++ {
		body := fmt.Sprintf(`{"batch_id":"B1","article_id":"a%d"}`, i)
		_, err := topic.Publish(ctx, &pubsub.Message{Data: []byte(body)}).Get(ctx)
		require.NoError(t, err)
	}
	topic.Stop()
	return client, srv
}

func TestPubSubConsumer_ProcessesAndAcks(t *testing.T) {
	tests := []struct {
		name    string
		publish int
		setSize int
	}{
		{name: "full set", publish: 3, setSize: 3},
		{name: "partial set flushed by linger", publish: 2, setSize: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			client, srv := newTestSubscription(t, tt.publish)
			processor := &recordingProcessor{}

			consumer, err := NewPubSubConsumer(client, PubSubConsumerConfig{
				SubscriptionID: "arxiv-items-worker",
				SetSize:        tt.setSize,
				Linger:         50 * time.Millisecond,
			}, processor)
			require.NoError(t, err)
			assert.Equal(t, "pubsub:arxiv-items-worker", consumer.Name())

			require.NoError(t, consumer.Start(ctx))
			assert.Eventually(t, func() bool {
				return processor.received() == tt.publish
			}, 5*time.Second, 10*time.Millisecond)

			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			require.NoError(t, consumer.Stop(stopCtx))

			assert.Eventually(t, func() bool {
				for _, msg := range srv.Messages() {
					if msg.Acks == 0 {
						return false
					}
				}
				return true
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestPubSubConsumer_MissingSubscription(t *testing.T) {
	client, _ := newTestSubscription(t, 0)
	consumer, err := NewPubSubConsumer(client, PubSubConsumerConfig{SubscriptionID: "absent"}, &recordingProcessor{})
	require.NoError(t, err)

	err = consumer.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestNewPubSubConsumer_Validation(t *testing.T) {
	client, _ := newTestSubscription(t, 0)

	_, err := NewPubSubConsumer(nil, PubSubConsumerConfig{SubscriptionID: "s"}, &recordingProcessor{})
	assert.Error(t, err)
	_, err = NewPubSubConsumer(client, PubSubConsumerConfig{}, &recordingProcessor{})
	assert.Error(t, err)
	_, err = NewPubSubConsumer(client, PubSubConsumerConfig{SubscriptionID: "s"}, nil)
	assert.Error(t, err)

	consumer, err := NewPubSubConsumer(client, PubSubConsumerConfig{SubscriptionID: "s"}, &recordingProcessor{})
	require.NoError(t, err)
	assert.Equal(t, 10, consumer.config.SetSize)
	assert.Equal(t, 2*time.Second, consumer.config.Linger)
	assert.NoError(t, consumer.Stop(context.Background()), "stopping an idle consumer is a no-op")
}
