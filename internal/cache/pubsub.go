package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketalerts/internal/logger"
)

// NotificationsChannel carries freshly dispatched notifications to the
// SSE fan-out in each web process.
const NotificationsChannel = "alert_notifications"

// Publisher publishes messages to a Redis channel.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscriber represents a subscription to a Redis channel.
type Subscriber struct {
	pubsub *redis.PubSub
}

// NewSubscriber subscribes to a channel and confirms the subscription.
func NewSubscriber(ctx context.Context, client *redis.Client, channel string) (*Subscriber, error) {
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	logger.Log.Info("subscribed to redis channel", zap.String("channel", channel))
	return &Subscriber{pubsub: pubsub}, nil
}

// ReceiveMessage waits for and returns the next message.
func (s *Subscriber) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	return s.pubsub.ReceiveMessage(ctx)
}

func (s *Subscriber) Close() error {
	return s.pubsub.Close()
}
