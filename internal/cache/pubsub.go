package cache

import (
	"context"
	"fmt"

	"cryptotracker/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func (c *Client) Publish(ctx context.Context, channel string, message []byte) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Subscriber is a confirmed subscription to one Redis channel.
type Subscriber struct {
	pubsub  *redis.PubSub
	channel string
}

// Subscribe returns once Redis has acknowledged the subscription, so no
// message published afterwards is missed.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscriber, error) {
	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	logger.Log.Debug("Subscribed to Redis channel", zap.String("channel", channel))
	return &Subscriber{pubsub: pubsub, channel: channel}, nil
}

// Channel delivers messages until Close.
func (s *Subscriber) Channel() <-chan *redis.Message {
	return s.pubsub.Channel()
}

func (s *Subscriber) Close() error {
	return s.pubsub.Close()
}
