// Package logger builds the application's *slog.Logger.
//
// New applies functional options (format, level, output, static attributes,
// environment defaults) and wraps the handler with LogHandlerDecorator, which
// pulls request-scoped values such as the request id out of the context on
// every record.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "feature-gating"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "toast shown", logger.NotificationID(id), logger.Category("info"))
//
// Attribute helpers in attr.go keep key names consistent across packages.
package logger
