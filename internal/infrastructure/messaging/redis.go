package messaging

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis publishes messages on Redis pub/sub channels named after the topic.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, topic string, body []byte) error {
	if err := r.client.Publish(ctx, topic, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close is a no-op: the client is shared and closed by its owner.
func (r *Redis) Close() error { return nil }

func (r *Redis) Consume(ctx context.Context, topic string, handler Handler) error {
	sub := r.client.Subscribe(ctx, topic)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ErrClosed
			}
			// pub/sub has no redelivery
			_ = handler(ctx, []byte(msg.Payload))
		}
	}
}
