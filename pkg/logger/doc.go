// Package logger builds slog loggers for the two-factor service.
//
// New returns a *slog.Logger configured by functional options: output format,
// level, static attributes, and ContextExtractor callbacks that copy
// request-scoped values such as the request id into every record logged with
// a context. Values under SensitiveKeys are replaced with [REDACTED] so TOTP
// secrets and codes cannot reach log storage by accident.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "twofactord"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "two-factor operation completed",
//		logger.Operation("verify"),
//		logger.Identity(userID),
//	)
//
// The helpers in attr.go keep attribute keys consistent across packages.
// Error returns an empty attribute for a nil error, which slog drops.
package logger
