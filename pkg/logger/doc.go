// Package logger builds log/slog loggers for the gateway and worker binaries.
//
// New takes functional options; FromConfig applies the APP_ENV, SERVICE_NAME
// and LOG_LEVEL settings from Config. Development runs log debug-level text,
// staging and production log info-level JSON.
//
// Context extractors attach request-scoped values to every record logged with
// a context, which is how correlation ids reach worker logs:
//
//	log := logger.FromConfig(cfg.Log,
//		logger.WithContextExtractors(correlation.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "notification sent",
//		logger.NotificationID(req.RequestID),
//		logger.Channel(req.Channel.String()),
//	)
//
// The attribute helpers keep key names consistent across packages.
package logger
