package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/skillhub/pkg/changerequest"
	"github.com/dmitrymomot/skillhub/pkg/httpserver"
	"github.com/dmitrymomot/skillhub/pkg/notifications"
	"github.com/dmitrymomot/skillhub/pkg/ratelimit"
	"github.com/dmitrymomot/skillhub/pkg/sse"
)

// ChangeRequests is the workflow behind the change request routes.
type ChangeRequests interface {
	Create(ctx context.Context, actor changerequest.Actor, skillID, title, description string) (*changerequest.ChangeRequest, error)
	Approve(ctx context.Context, id string, actor changerequest.Actor) (*changerequest.Result, error)
	Reject(ctx context.Context, id string, actor changerequest.Actor) (*changerequest.Result, error)
	Withdraw(ctx context.Context, id string, actor changerequest.Actor) (*changerequest.Result, error)
	Get(ctx context.Context, id string) (*changerequest.ChangeRequest, error)
	ListBySkill(ctx context.Context, skillID string, status changerequest.Status) ([]changerequest.ChangeRequest, error)
}

// Notifications is the inbox behind the notification routes.
type Notifications interface {
	List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, userID string, ids ...string) error
	MarkAllRead(ctx context.Context, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
	SetPreferences(ctx context.Context, userID string, prefs notifications.Preferences) error
}

// Streams serves server-sent event streams.
type Streams interface {
	Handler(channelFn sse.ChannelFunc) http.HandlerFunc
}

// RouterOptions configures the API router. ChangeRequests, Notifications
// and Streams are required; the rest fall back to defaults.
type RouterOptions struct {
	ChangeRequests ChangeRequests
	Notifications  Notifications
	Streams        Streams

	// Limiter guards mutating routes and stream opens. Nil disables limiting.
	Limiter ratelimit.Checker
	// Identity resolves the caller. Defaults to HeaderIdentity.
	Identity IdentityFunc
	// HealthChecks are run by GET /health.
	HealthChecks []httpserver.HealthCheck
	Logger       *slog.Logger
}

type api struct {
	crs      ChangeRequests
	notes    Notifications
	streams  Streams
	identity IdentityFunc
	logger   *slog.Logger
}

// Router builds the HTTP API.
func Router(opts RouterOptions) chi.Router {
	if opts.ChangeRequests == nil || opts.Notifications == nil || opts.Streams == nil {
		panic("httpapi.Router: ChangeRequests, Notifications and Streams are required")
	}

	a := &api{
		crs:      opts.ChangeRequests,
		notes:    opts.Notifications,
		streams:  opts.Streams,
		identity: opts.Identity,
		logger:   opts.Logger,
	}
	if a.identity == nil {
		a.identity = HeaderIdentity
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	limit := func(next http.Handler) http.Handler { return next }
	if opts.Limiter != nil {
		limit = ratelimit.Middleware(opts.Limiter,
			ratelimit.Composite(ratelimit.ByUser(userID), ratelimit.ByIP()),
			ratelimit.WithMiddlewareLogger(a.logger),
			ratelimit.WithOnLimited(func(w http.ResponseWriter, r *http.Request, _ ratelimit.Decision) {
				a.fail(w, r, ErrTooManyRequests)
			}),
		)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { a.fail(w, r, ErrNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.fail(w, r, HTTPError{Code: http.StatusMethodNotAllowed, Key: "method_not_allowed"})
	})

	r.Get("/health", httpserver.HealthCheckHandler(a.logger, opts.HealthChecks...))

	r.Route("/api", func(r chi.Router) {
		r.Use(a.authenticate)

		r.Route("/skills/{skillID}/change-requests", func(r chi.Router) {
			r.Get("/", a.listChangeRequests)
			r.With(limit).Post("/", a.createChangeRequest)
		})

		r.Route("/change-requests/{id}", func(r chi.Router) {
			r.Get("/", a.getChangeRequest)
			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/approve", a.approveChangeRequest)
				r.Post("/reject", a.rejectChangeRequest)
				r.Post("/withdraw", a.withdrawChangeRequest)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", a.listNotifications)
			r.Get("/unread-count", a.unreadCount)
			r.With(limit).Post("/read", a.markRead)
			r.With(limit).Put("/preferences", a.setPreferences)
		})

		r.Route("/stream", func(r chi.Router) {
			r.Use(limit)
			r.Get("/notifications", a.streams.Handler(notificationsChannel))
			r.Get("/skills/{skillID}", a.streams.Handler(skillChannel))
			r.Get("/stats", a.streams.Handler(statsChannel))
		})
	})

	return r
}
