package pubsub

import "context"

// Backend is the notify/listen transport used by Bridge.
// Channel names handed to a Backend are already sanitized.
type Backend interface {
	// Notify delivers payload to every listener currently attached to channel.
	Notify(ctx context.Context, channel, payload string) error

	// Listen opens a dedicated listener on channel. The listener owns its
	// resources until Close.
	Listen(ctx context.Context, channel string) (Listener, error)
}

// Listener is a single dedicated subscription resource. It is not safe for
// concurrent Receive calls; Close must only be called after the last Receive
// has returned.
type Listener interface {
	// Receive blocks until a payload arrives, ctx ends, or the listener fails.
	Receive(ctx context.Context) (string, error)

	// Close stops listening and releases the underlying connection.
	Close(ctx context.Context) error
}
