// Package cluster links relay instances through Redis pub/sub so clients
// connected to different processes still hear each other.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tonerelay/internal/relay"
)

// Envelope is what travels over the Redis channel. Data keeps the exact
// payload bytes (base64 in JSON) so peers receive them unchanged.
type Envelope struct {
	Origin string `json:"origin"` // instance ID of the publishing relay
	Type   int    `json:"type"`   // websocket frame type
	Data   []byte `json:"data"`
}

// Deliverer hands a remote frame to every local connection.
type Deliverer interface {
	Deliver(f relay.Frame) int
}

// RedisBridge publishes local frames and delivers frames from other instances.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRedisBridge connects to Redis at redisURL (redis:// or rediss://).
func NewRedisBridge(redisURL, channel string) (*RedisBridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisBridgeWithClient(redis.NewClient(opts), channel), nil
}

// NewRedisBridgeWithClient uses an existing client.
func NewRedisBridgeWithClient(client *redis.Client, channel string) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  slog.Default(),
	}
}

// Origin returns this instance's ID.
func (b *RedisBridge) Origin() string {
	return b.origin
}

// Ping checks that Redis is reachable.
func (b *RedisBridge) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Publish implements relay.Publisher.
func (b *RedisBridge) Publish(ctx context.Context, f relay.Frame) error {
	data, err := b.encode(f)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", b.channel, err)
	}
	return nil
}

// Run subscribes to the channel and delivers remote frames until ctx is done.
func (b *RedisBridge) Run(ctx context.Context, d Deliverer) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("cluster_subscribed",
		"channel", b.channel,
		"origin", b.origin,
	)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload, d)
		}
	}
}

// Close releases the Redis client.
func (b *RedisBridge) Close() error {
	return b.client.Close()
}

func (b *RedisBridge) handle(payload string, d Deliverer) {
	env, err := decode(payload)
	if err != nil {
		b.logger.Warn("cluster_invalid_envelope",
			"error", err.Error(),
		)
		return
	}
	if env.Origin == b.origin {
		return
	}
	delivered := d.Deliver(relay.Frame{Type: env.Type, Data: env.Data})
	b.logger.Debug("cluster_message_delivered",
		"origin", env.Origin,
		"size", len(env.Data),
		"delivered", delivered,
	)
}

func (b *RedisBridge) encode(f relay.Frame) ([]byte, error) {
	data, err := json.Marshal(Envelope{Origin: b.origin, Type: f.Type, Data: f.Data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

func decode(payload string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.Origin == "" {
		return nil, fmt.Errorf("envelope has no origin")
	}
	return &env, nil
}
