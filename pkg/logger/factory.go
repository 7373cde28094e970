package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/campusmind/twofactor/pkg/environment"
)

// Format selects the slog handler used for output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// SensitiveKeys are never written by a logger built with New.
var SensitiveKeys = []string{"secret", "code", "backup_codes", "provisioning_uri", "encryption_key"}

const redacted = "[REDACTED]"

type settings struct {
	level      slog.Level
	format     Format
	out        io.Writer
	static     []slog.Attr
	extractors []ContextExtractor
	redact     []string
}

type Option func(*settings)

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat panics for anything but FormatJSON or FormatText.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unknown format %q", f))
	}
	return func(s *settings) { s.format = f }
}

// WithOutput ignores a nil writer.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.static = append(s.static, attrs...) }
}

// WithContextExtractors adds per-record attributes taken from the context
// passed to the *Context logging methods.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, fn := range extractors {
			if fn != nil {
				s.extractors = append(s.extractors, fn)
			}
		}
	}
}

// WithContextValue logs ctx.Value(key) under name when present.
func WithContextValue(name string, key any) Option {
	if name == "" || key == nil {
		return func(*settings) {}
	}
	return WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
		v := ctx.Value(key)
		return slog.Any(name, v), v != nil
	})
}

// WithRedactedKeys extends SensitiveKeys for this logger.
func WithRedactedKeys(keys ...string) Option {
	return func(s *settings) { s.redact = append(s.redact, keys...) }
}

// WithEnvironment picks debug text output for development and info JSON
// everywhere else, and tags records with service and env.
func WithEnvironment(env environment.Environment, service string) Option {
	return func(s *settings) {
		s.level, s.format = slog.LevelInfo, FormatJSON
		if env == environment.Development {
			s.level, s.format = slog.LevelDebug, FormatText
		}
		if service != "" {
			s.static = append(s.static, slog.String("service", service))
		}
		s.static = append(s.static, slog.String("env", string(env)))
	}
}

func SetAsDefault(l *slog.Logger) { slog.SetDefault(l) }

// New builds a logger writing JSON at info level to stdout unless options
// say otherwise.
func New(opts ...Option) *slog.Logger {
	s := settings{
		level:  slog.LevelInfo,
		format: FormatJSON,
		out:    os.Stdout,
		redact: slices.Clone(SensitiveKeys),
	}
	for _, opt := range opts {
		opt(&s)
	}

	hopts := &slog.HandlerOptions{Level: s.level, ReplaceAttr: s.replace}
	var h slog.Handler = slog.NewJSONHandler(s.out, hopts)
	if s.format == FormatText {
		h = slog.NewTextHandler(s.out, hopts)
	}
	if len(s.static) > 0 {
		h = h.WithAttrs(s.static)
	}
	return slog.New(withContext(h, s.extractors))
}

func (s settings) replace(_ []string, a slog.Attr) slog.Attr {
	if slices.Contains(s.redact, a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
