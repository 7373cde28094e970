package audit

import (
	"context"
	"log/slog"

	"github.com/campusmind/twofactor/pkg/logger"
)

// SlogWriter emits events as structured log records at info level.
// It is the default sink when no audit table is configured.
type SlogWriter struct {
	log *slog.Logger
}

func NewSlogWriter(log *slog.Logger) *SlogWriter {
	if log == nil {
		log = slog.Default()
	}
	return &SlogWriter{log: log.With(logger.Component("audit"))}
}

func (w *SlogWriter) Store(ctx context.Context, event Event) error {
	attrs := []slog.Attr{
		slog.String("audit_id", event.ID),
		slog.String("action", event.Action),
		slog.String("result", string(event.Result)),
		slog.Time("at", event.CreatedAt),
	}
	if event.UserID != "" {
		attrs = append(attrs, logger.Identity(event.UserID))
	}
	if event.RequestID != "" {
		attrs = append(attrs, logger.RequestID(event.RequestID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		meta := make([]slog.Attr, 0, len(event.Metadata))
		for k, v := range event.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		attrs = append(attrs, logger.Group("metadata", meta...))
	}
	w.log.LogAttrs(ctx, slog.LevelInfo, "audit event", attrs...)
	return nil
}

func (w *SlogWriter) StoreBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		if err := w.Store(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
