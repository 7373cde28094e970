package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

var (
	ErrStart    = errors.New("httpserver: start failed")
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)

// Config is loaded from HTTP_* variables.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// NewFromConfig applies the non-zero fields of cfg, then opts.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	var fromCfg []Option
	if cfg.Addr != "" {
		fromCfg = append(fromCfg, WithAddr(cfg.Addr))
	}
	for _, d := range []struct {
		v   time.Duration
		opt func(time.Duration) Option
	}{
		{cfg.ReadTimeout, WithReadTimeout},
		{cfg.WriteTimeout, WithWriteTimeout},
		{cfg.IdleTimeout, WithIdleTimeout},
		{cfg.ShutdownTimeout, WithShutdownTimeout},
	} {
		if d.v > 0 {
			fromCfg = append(fromCfg, d.opt(d.v))
		}
	}
	return New(append(fromCfg, opts...)...)
}

// Option configures a Server. Options panic on invalid values since they
// are programming errors.
type Option func(*config)

func positive(name string, d time.Duration) {
	if d <= 0 {
		panic(fmt.Sprintf("httpserver: %s must be positive, got %v", name, d))
	}
}

func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty addr")
	}
	return func(c *config) { c.addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	positive("read timeout", d)
	return func(c *config) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	positive("write timeout", d)
	return func(c *config) { c.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	positive("idle timeout", d)
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds the drain of in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	positive("shutdown timeout", d)
	return func(c *config) { c.shutdownTimeout = d }
}

// WithListener serves on ln, ignoring the address. Used by tests.
func WithListener(ln net.Listener) Option {
	if ln == nil {
		panic("httpserver: nil listener")
	}
	return func(c *config) { c.listener = ln }
}

// WithLogger sets the lifecycle logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
