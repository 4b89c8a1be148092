package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/skillhub/internal/config"
	"github.com/dmitrymomot/skillhub/internal/db/migrations"
	"github.com/dmitrymomot/skillhub/internal/httpapi"
	"github.com/dmitrymomot/skillhub/internal/stats"
	"github.com/dmitrymomot/skillhub/pkg/changerequest"
	"github.com/dmitrymomot/skillhub/pkg/httpserver"
	"github.com/dmitrymomot/skillhub/pkg/logger"
	"github.com/dmitrymomot/skillhub/pkg/notifications"
	"github.com/dmitrymomot/skillhub/pkg/pg"
	"github.com/dmitrymomot/skillhub/pkg/pubsub"
	"github.com/dmitrymomot/skillhub/pkg/ratelimit"
	"github.com/dmitrymomot/skillhub/pkg/redis"
	"github.com/dmitrymomot/skillhub/pkg/sse"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(
		logger.WithEnvironment(string(cfg.AppEnv), cfg.AppName),
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithContextExtractors(logger.RequestIDExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "service stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Postgres.MigrateOnStart {
		if err := pg.Migrate(ctx, pool, migrations.FS, cfg.Postgres, log); err != nil {
			return err
		}
	}

	checks := []httpserver.HealthCheck{{Name: "postgres", Check: pg.Healthcheck(pool)}}

	var rdb *goredis.Client
	if cfg.UsesRedis() {
		rdb, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		checks = append(checks, httpserver.HealthCheck{Name: "redis", Check: redis.Healthcheck(rdb)})
	}

	var backend pubsub.Backend
	switch cfg.PubSubBackend {
	case config.PubSubRedis:
		backend = pubsub.NewRedisBackend(rdb, pubsub.WithChannelPrefix(cfg.Redis.KeyPrefix))
	case config.PubSubMemory:
		mem := pubsub.NewMemoryBackend()
		defer func() { _ = mem.Close() }()
		backend = mem
	default:
		backend = pubsub.NewPostgresBackend(pool)
	}

	bridge := pubsub.NewBridge(backend, pubsub.WithLogger(log))
	topics := pubsub.NewTopicPublisher(bridge)

	dispatcher := notifications.NewDispatcher(
		notifications.NewPostgresStorage(pool),
		notifications.NewPubSubDeliverer(bridge),
		notifications.WithLogger(log),
	)

	crService := changerequest.NewService(
		changerequest.NewPostgresStore(pool),
		dispatcher,
		changerequest.WithLogger(log),
		changerequest.WithSkillEvents(topics),
	)

	var limitStore ratelimit.Store
	if cfg.RateLimitStore == "redis" {
		limitStore = ratelimit.NewRedisStore(rdb, ratelimit.WithKeyPrefix(cfg.Redis.KeyPrefix+"ratelimit:"))
	} else {
		mem := ratelimit.NewMemoryStore()
		defer func() { _ = mem.Close() }()
		limitStore = mem
	}
	limiter, err := ratelimit.NewFixedWindow(limitStore, cfg.RateLimit)
	if err != nil {
		return err
	}

	router := httpapi.Router(httpapi.RouterOptions{
		ChangeRequests: crService,
		Notifications:  dispatcher,
		Streams:        sse.NewManager(bridge, cfg.SSE, sse.WithLogger(log)),
		Limiter:        limiter,
		HealthChecks:   checks,
		Logger:         log,
	})

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	broadcaster := stats.NewBroadcaster(stats.NewPostgresSource(pool), topics, cfg.Stats, stats.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, router) })
	g.Go(func() error { return broadcaster.Run(gctx) })
	return g.Wait()
}
