package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrymomot/skillhub/pkg/changerequest"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// Actor converts the identity into the change request workflow's caller.
func (i Identity) Actor() changerequest.Actor {
	return changerequest.Actor{UserID: i.UserID, IsAdmin: i.IsAdmin}
}

// IdentityFunc resolves the caller of r. ok is false for anonymous requests.
type IdentityFunc func(r *http.Request) (id Identity, ok bool)

// Header names read by HeaderIdentity.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// HeaderIdentity reads the identity forwarded by the auth proxy.
func HeaderIdentity(r *http.Request) (Identity, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Identity{}, false
	}
	return Identity{
		UserID:  userID,
		IsAdmin: strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), "admin"),
	}, true
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// userID is the rate limit key of authenticated requests.
func userID(r *http.Request) string {
	id, _ := IdentityFromContext(r.Context())
	return id.UserID
}

func (a *api) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.identity(r)
		if !ok {
			a.fail(w, r, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func mustIdentity(r *http.Request) Identity {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		panic("httpapi: identity missing, route is not behind authenticate")
	}
	return id
}
