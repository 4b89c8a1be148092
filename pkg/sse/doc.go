// Package sse turns pub/sub subscriptions into Server-Sent Events streams.
//
// A stream sets the event-stream headers, subscribes to one channel, writes
// an initial ": ping" comment, then forwards every payload as a "data:" frame
// and emits a ": ping" heartbeat on a fixed interval. Each frame is flushed
// as soon as it is written.
//
// Teardown runs on every exit path (client disconnect, server shutdown,
// explicit Close): the heartbeat stops, the optional close callback runs,
// then the subscription and its dedicated listener are released.
//
// A failed write (client gone) stops the heartbeat and drops later frames;
// the stream stays registered until its request context ends.
//
//	mgr := sse.NewManager(bridge, cfg, sse.WithLogger(log))
//	r.Get("/api/stream/stats", mgr.Handler(func(*http.Request) (string, error) {
//		return pubsub.GlobalStatsChannel, nil
//	}))
package sse
