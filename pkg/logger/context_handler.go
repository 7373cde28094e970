package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a record's context.
// It reports false when the context carries nothing for it.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// withContext returns inner unchanged when there is nothing to extract.
func withContext(inner slog.Handler, extractors []ContextExtractor) slog.Handler {
	if len(extractors) == 0 {
		return inner
	}
	return contextHandler{inner: inner, extract: extractors}
}

type contextHandler struct {
	inner   slog.Handler
	extract []ContextExtractor
}

func (c contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.inner.Enabled(ctx, level)
}

func (c contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if ctx != nil {
		rec = rec.Clone()
		for _, fn := range c.extract {
			if a, ok := fn(ctx); ok {
				rec.AddAttrs(a)
			}
		}
	}
	return c.inner.Handle(ctx, rec)
}

func (c contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c.inner = c.inner.WithAttrs(attrs)
	return c
}

func (c contextHandler) WithGroup(name string) slog.Handler {
	c.inner = c.inner.WithGroup(name)
	return c
}
