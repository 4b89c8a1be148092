// Package httpapi exposes the change request workflow, the notification
// inbox and the live streams over HTTP.
//
// Authentication happens upstream: an IdentityFunc turns the request into an
// Identity (by default from the X-User-ID and X-User-Role headers set by the
// auth proxy). Every /api route requires one.
//
// Responses use a single JSON envelope:
//
//	{"data": ...}
//	{"error": {"code": "not_found", "message": "..."}}
//
// Usage:
//
//	r := httpapi.Router(httpapi.RouterOptions{
//		ChangeRequests: crService,
//		Notifications:  dispatcher,
//		Streams:        sseManager,
//		Limiter:        limiter,
//		Logger:         log,
//	})
//	srv.Run(ctx, r)
package httpapi
