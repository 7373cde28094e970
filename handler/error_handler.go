package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/campusmind/twofactor/pkg/logger"
	"github.com/campusmind/twofactor/pkg/requestid"
)

// Classifier maps a domain error to an HTTPError. It reports false when it
// does not recognize err.
type Classifier func(err error) (HTTPError, bool)

// ErrorInfo contains classified error information
type ErrorInfo struct {
	HTTPError
	LogLevel slog.Level
}

func isClientError(statusCode int) bool {
	return statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError
}

// determineLogLevel maps HTTP status codes to appropriate log levels
func determineLogLevel(statusCode int) slog.Level {
	if isClientError(statusCode) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// classifyError runs the classifiers in order; an HTTPError anywhere in the
// chain wins, and unknown errors become 500.
func classifyError(err error, classifiers []Classifier) ErrorInfo {
	info := ErrorInfo{HTTPError: ErrInternalServerError}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		info.HTTPError = httpErr
	} else {
		for _, classify := range classifiers {
			if mapped, ok := classify(err); ok {
				info.HTTPError = mapped
				break
			}
		}
	}

	info.LogLevel = determineLogLevel(info.Code)
	return info
}

func logError(log *slog.Logger, ctx Context, err error, info ErrorInfo) {
	r := ctx.Request()
	log.LogAttrs(r.Context(), info.LogLevel, "request error",
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", info.Code),
		slog.String("error_code", info.Key),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Component("error_handler"),
	)
}

// NewErrorHandler logs every error and renders the JSON error envelope.
// Configure it once in main and pass it to every route.
func NewErrorHandler(log *slog.Logger, classifiers ...Classifier) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		info := classifyError(err, classifiers)
		logError(log, ctx, err, info)

		if renderErr := JSONError(info.HTTPError).Render(ctx.ResponseWriter(), ctx.Request()); renderErr != nil {
			log.ErrorContext(ctx, "failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
