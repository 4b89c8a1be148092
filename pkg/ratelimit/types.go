package ratelimit

import (
	"context"
	"time"
)

// Config defines the fixed window parameters.
type Config struct {
	Limit  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"` // Limit is the number of requests allowed per window.
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`   // Window is the length of a single counting window.
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return ErrInvalidLimit
	}
	if c.Window <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

// Decision is the outcome of a single Check call.
// Denials are values, not errors: they are the expected result under load.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // whole seconds until the window resets; 0 when allowed
}

// Store keeps per-key window counters.
type Store interface {
	// Increment adds one hit to the key's window and returns the new count
	// together with the time the window resets. A missing or expired window
	// is replaced by a fresh one holding count 1 and resetAt = now + window.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (count int64, resetAt time.Time, err error)

	// Reset drops the window for key.
	Reset(ctx context.Context, key string) error
}
