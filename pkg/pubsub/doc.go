// Package pubsub bridges logical topic channels onto a notify/listen
// transport: PostgreSQL LISTEN/NOTIFY, Redis PUBLISH/SUBSCRIBE, or an
// in-process backend for tests and single-node development.
//
// Channel names are sanitized to [A-Za-z0-9_] before they reach the backend.
// Publishing is fire-and-forget: failures are logged and discarded.
// Every subscription owns a dedicated Listener (for Postgres, a connection that
// is never returned to the query pool) and releases it on Unsubscribe or when
// its context ends.
//
//	bridge := pubsub.NewBridge(pubsub.NewPostgresBackend(pool), pubsub.WithLogger(log))
//
//	sub, err := bridge.Subscribe(ctx, pubsub.NotificationsChannel(userID), func(payload string) {
//		// forward payload
//	})
//	if err != nil {
//		return err
//	}
//	defer sub.Unsubscribe()
//
//	bridge.Publish(ctx, pubsub.NotificationsChannel(userID), `{"hello":"world"}`)
package pubsub
