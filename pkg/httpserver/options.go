package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the HTTP server. Zero or negative durations and empty
// addresses leave the current value in place.
type Option func(*config)

// WithAddr sets the listen address. ":0" picks a free port, see Server.Addr.
func WithAddr(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.addr = addr
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { setPositive(&c.readTimeout, d) }
}

// WithWriteTimeout bounds response writes. Leave it unset when the handler
// serves event streams.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { setPositive(&c.writeTimeout, d) }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { setPositive(&c.idleTimeout, d) }
}

// WithShutdownTimeout sets the time in-flight requests get after shutdown starts.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) { setPositive(&c.shutdownTimeout, d) }
}

// WithLogger sets the lifecycle logger. Nil keeps logs discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func setPositive(dst *time.Duration, d time.Duration) {
	if d > 0 {
		*dst = d
	}
}
