package pubsub_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/skillhub/pkg/pg"
	"github.com/dmitrymomot/skillhub/pkg/pubsub"
	"github.com/dmitrymomot/skillhub/pkg/redis"
)

func roundTrip(t *testing.T, backend pubsub.Backend) {
	t.Helper()

	bridge := pubsub.NewBridge(backend, pubsub.WithLogger(quietLogger()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := newCollector()
	sub, err := bridge.Subscribe(ctx, pubsub.NotificationsChannel("it-user"), c.add)
	require.NoError(t, err)

	bridge.Publish(ctx, pubsub.NotificationsChannel("it-user"), "one")
	bridge.Publish(ctx, pubsub.NotificationsChannel("it-user"), "two")
	require.Equal(t, []string{"one", "two"}, c.wait(t, 2))

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
}

func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}

	pool, err := pg.Connect(context.Background(), pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		RetryAttempts:    1,
	})
	require.NoError(t, err)
	defer pool.Close()

	roundTrip(t, pubsub.NewPostgresBackend(pool))
}

func TestRedisBackend(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	client, err := redis.Connect(context.Background(), redis.Config{
		ConnectionURL:  url,
		RetryAttempts:  1,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	roundTrip(t, pubsub.NewRedisBackend(client, pubsub.WithChannelPrefix("test:")))
}
