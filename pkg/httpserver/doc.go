// Package httpserver runs an http.Handler with signal-driven graceful
// shutdown. Request contexts are cancelled as soon as shutdown starts, which
// lets SSE streams unwind before the shutdown deadline.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// HealthCheckHandler turns dependency probes into a readiness endpoint.
package httpserver
