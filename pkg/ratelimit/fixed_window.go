package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// FixedWindow is a fixed-window limiter over a Store.
type FixedWindow struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the time source. Used by tests to step across window boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindow) {
		if now != nil {
			l.now = now
		}
	}
}

// NewFixedWindow creates a limiter allowing cfg.Limit requests per cfg.Window per key.
func NewFixedWindow(store Store, cfg Config, opts ...Option) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	l := &FixedWindow{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check records one request for key and reports whether it is allowed.
func (l *FixedWindow) Check(ctx context.Context, key string) (Decision, error) {
	if key == "" {
		return Decision{}, ErrKeyRequired
	}

	now := l.now()
	count, resetAt, err := l.store.Increment(ctx, key, now, l.cfg.Window)
	if err != nil {
		return Decision{}, errors.Join(ErrStoreFailure, err)
	}

	d := Decision{
		Allowed:   count <= int64(l.cfg.Limit),
		Limit:     l.cfg.Limit,
		Remaining: max(0, l.cfg.Limit-int(count)),
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = retryAfterSeconds(resetAt.Sub(now))
	}
	return d, nil
}

// Reset clears the counter for key.
func (l *FixedWindow) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// Config returns the limiter configuration.
func (l *FixedWindow) Config() Config {
	return l.cfg
}

// retryAfterSeconds rounds up to whole seconds and never reports less than 1
// for a denied request, so clients always back off.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	return max(secs, 1)
}
