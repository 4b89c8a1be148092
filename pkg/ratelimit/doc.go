// Package ratelimit implements a fixed-window request limiter keyed by caller
// identity, with in-memory and Redis counter stores and an HTTP middleware
// that answers 429 with a Retry-After hint.
//
// A window opens on the first request for a key and lasts Config.Window.
// Up to Config.Limit requests are allowed inside it; the next one is denied
// until the window expires, at which point the counter starts again at 1.
//
//	store := ratelimit.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimit.NewFixedWindow(store, ratelimit.Config{Limit: 20, Window: time.Second})
//	if err != nil {
//		return err
//	}
//	r.Use(ratelimit.Middleware(limiter, ratelimit.Composite(userKey, ratelimit.ByIP())))
package ratelimit
