package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/skillhub/pkg/logger"
)

// Checker is the part of FixedWindow the middleware depends on.
type Checker interface {
	Check(ctx context.Context, key string) (Decision, error)
}

// MiddlewareOption configures middleware behavior.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	skip      func(*http.Request) bool
	onLimited func(w http.ResponseWriter, r *http.Request, d Decision)
	logger    *slog.Logger
}

// WithSkip exempts requests for which fn returns true.
func WithSkip(fn func(*http.Request) bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.skip = fn
	}
}

// WithOnLimited replaces the default 429 response writer.
// Retry-After is already set when fn runs.
func WithOnLimited(fn func(w http.ResponseWriter, r *http.Request, d Decision)) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onLimited = fn
		}
	}
}

// WithMiddlewareLogger sets the logger used for store failures.
func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// SkipSafeMethods exempts GET, HEAD and OPTIONS requests.
func SkipSafeMethods(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Middleware enforces limiter per key. Store errors fail open: the request
// proceeds and the error is logged.
func Middleware(limiter Checker, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if keyFunc == nil {
		panic("ratelimit.Middleware: keyFunc is required")
	}

	cfg := &middlewareConfig{
		onLimited: func(w http.ResponseWriter, r *http.Request, d Decision) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skip != nil && cfg.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			d, err := limiter.Check(r.Context(), key)
			if err != nil {
				cfg.logger.LogAttrs(r.Context(), slog.LevelError, "rate limiter unavailable, allowing request",
					logger.RateLimitKey(key),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
				cfg.onLimited(w, r, d)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
