package jetstream

import (
	"context"

	"github.com/nats-io/nats.go"
)

// ClientInterface is the JetStream surface the trigger consumer and synctl need.
type ClientInterface interface {
	// SetupStream creates the stream or updates it when the configuration drifted
	SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error

	// SetupConsumer creates the durable consumer or recreates it when the configuration drifted
	SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error

	// SubscribePush binds a queue subscription to an existing push consumer
	SubscribePush(subject, consumer, group, stream string, handler nats.MsgHandler) (*nats.Subscription, error)

	// Publish publishes a trigger and waits for the stream acknowledgement
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error

	// Ping checks the connection for the readiness probe
	Ping(ctx context.Context) error

	// Close drains and closes the NATS connection
	Close()
}
