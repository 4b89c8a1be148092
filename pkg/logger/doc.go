// Package logger builds the service-wide *slog.Logger and keeps attribute
// naming consistent across packages.
//
// New applies functional options (format, level, static attributes, context
// extractors) and wraps the resulting handler with LogHandlerDecorator so
// request-scoped values such as the request id are attached on every call.
//
//	log := logger.New(
//		logger.WithEnvironment(string(cfg.AppEnv), cfg.AppName),
//		logger.WithContextExtractors(logger.RequestIDExtractor()),
//	)
//	log.InfoContext(ctx, "stream opened", logger.Channel(ch), logger.UserID(uid))
package logger
