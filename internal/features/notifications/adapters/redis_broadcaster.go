package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster implements the sync Broadcaster port on Redis pub/sub.
// Delivery is at-most-best-effort: subscribers that are down miss messages,
// which is acceptable for office dashboards that re-read state on load.
type RedisBroadcaster struct {
	client *redis.Client
}

// NewRedisBroadcaster creates a Redis-backed broadcaster.
// The redisURL should be in the format: redis://[:password@]host[:port][/database]
func NewRedisBroadcaster(redisURL string) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &RedisBroadcaster{client: redis.NewClient(opts)}, nil
}

// Publish marshals the payload and publishes it on the topic.
func (b *RedisBroadcaster) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", topic, err)
	}
	return nil
}

// Message is one pub/sub message received by a subscriber.
type Message struct {
	// Topic is the channel the message arrived on.
	Topic string
	// Payload is the raw JSON published on the topic.
	Payload []byte
}

// Subscribe returns a channel of messages for the given topics and a stop
// function. The channel closes when the subscription ends.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, topics ...string) (<-chan Message, func() error) {
	sub := b.client.Subscribe(ctx, topics...)

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}
		}
	}()

	return out, sub.Close
}

// Ping checks if Redis is reachable.
func (b *RedisBroadcaster) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
