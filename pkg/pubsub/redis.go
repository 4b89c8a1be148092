package pubsub

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend on Redis PUBLISH/SUBSCRIBE. Each Listen
// holds its own PubSub connection.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithChannelPrefix namespaces every channel, e.g. per environment.
func WithChannelPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		b.prefix = prefix
	}
}

// NewRedisBackend creates a Redis backend over client.
func NewRedisBackend(client redis.UniversalClient, opts ...RedisOption) *RedisBackend {
	b := &RedisBackend{client: client}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Notify implements Backend.
func (b *RedisBackend) Notify(ctx context.Context, channel, payload string) error {
	return b.client.Publish(ctx, b.prefix+channel, payload).Err()
}

// Listen implements Backend. It returns once the server has confirmed the
// subscription, so a Notify issued afterwards is observed.
func (b *RedisBackend) Listen(ctx context.Context, channel string) (Listener, error) {
	name := b.prefix + channel
	ps := b.client.Subscribe(ctx, name)
	if _, err := ps.Receive(ctx); err != nil {
		return nil, errors.Join(err, ps.Close())
	}
	return &redisListener{ps: ps, channel: name}, nil
}

type redisListener struct {
	ps      *redis.PubSub
	channel string
}

func (l *redisListener) Receive(ctx context.Context) (string, error) {
	msg, err := l.ps.ReceiveMessage(ctx)
	if err != nil {
		return "", err
	}
	return msg.Payload, nil
}

func (l *redisListener) Close(ctx context.Context) error {
	_ = l.ps.Unsubscribe(ctx, l.channel)
	return l.ps.Close()
}
