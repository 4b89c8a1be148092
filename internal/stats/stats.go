// Package stats periodically publishes platform-wide counters to the
// global stats channel.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/skillhub/pkg/logger"
	"github.com/dmitrymomot/skillhub/pkg/pubsub"
)

// Config holds the broadcast interval.
type Config struct {
	Interval time.Duration `env:"STATS_INTERVAL" envDefault:"10s"`
}

// Source reads the current counters.
type Source interface {
	Snapshot(ctx context.Context) (pubsub.GlobalStats, error)
}

// Publisher is satisfied by *pubsub.TopicPublisher.
type Publisher interface {
	GlobalStats(ctx context.Context, stats pubsub.GlobalStats)
}

// PostgresSource counts skills, downloads and users.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgresSource.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) Snapshot(ctx context.Context) (pubsub.GlobalStats, error) {
	var st pubsub.GlobalStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM skills),
			(SELECT COALESCE(sum(downloads), 0)::BIGINT FROM skills),
			(SELECT count(*) FROM users)`,
	).Scan(&st.TotalSkills, &st.TotalDownloads, &st.TotalUsers)
	return st, err
}

// Broadcaster publishes a snapshot every interval, skipping unchanged ones.
type Broadcaster struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	logger    *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLogger sets the logger for failed snapshots.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBroadcaster creates a Broadcaster. A non-positive interval falls back to 10s.
func NewBroadcaster(source Source, publisher Publisher, cfg Config, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		source:    source,
		publisher: publisher,
		interval:  cfg.Interval,
		logger:    slog.Default(),
	}
	if b.interval <= 0 {
		b.interval = 10 * time.Second
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run publishes until ctx is done. The first snapshot goes out immediately.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var (
		last      pubsub.GlobalStats
		published bool
	)
	for {
		st, err := b.source.Snapshot(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				b.logger.LogAttrs(ctx, slog.LevelError, "stats snapshot failed",
					logger.Component("stats"),
					logger.Error(err),
				)
			}
		case !published || st != last:
			b.publisher.GlobalStats(ctx, st)
			last, published = st, true
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
