package twofactor

import (
	"context"
	"log/slog"
	"time"

	"github.com/campusmind/twofactor/pkg/ratelimiter"
	"github.com/campusmind/twofactor/pkg/totp"
)

const DefaultIssuer = "CampusMind"

// QRRenderer turns a provisioning URI into a PNG image.
type QRRenderer interface {
	Render(uri string) ([]byte, error)
}

// AttemptLimiter throttles code checks per identity.
// *ratelimiter.Bucket satisfies it.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (*ratelimiter.Result, error)
	Reset(ctx context.Context, key string) error
}

// Metrics receives one observation per engine operation.
type Metrics interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	BackupCodeConsumed()
}

// Option configures an Engine.
type Option func(*Engine)

// WithIssuer sets the issuer shown by authenticator apps.
func WithIssuer(issuer string) Option {
	return func(e *Engine) {
		e.issuer = issuer
	}
}

// WithWindow sets how many steps on each side of the current one are accepted.
func WithWindow(steps int) Option {
	return func(e *Engine) {
		e.window = steps
	}
}

// WithBackupCodeCount sets the number of backup codes issued per batch.
func WithBackupCodeCount(n int) Option {
	return func(e *Engine) {
		e.backupCodeCount = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithQRRenderer enables QR images in setups and the QRCode operation.
func WithQRRenderer(r QRRenderer) Option {
	return func(e *Engine) {
		e.qr = r
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithAttemptLimiter throttles every operation that checks a code.
func WithAttemptLimiter(l AttemptLimiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithReplayProtection rejects TOTP codes whose step is not newer than the
// last accepted step of the record. Off by default.
func WithReplayProtection(enabled bool) Option {
	return func(e *Engine) {
		e.replayProtection = enabled
	}
}

func (e *Engine) validate() error {
	switch {
	case e.store == nil:
		return errorf("store is required")
	case e.issuer == "":
		return errorf("issuer is required")
	case e.window < 0:
		return errorf("window must not be negative, got %d", e.window)
	case e.backupCodeCount < 1:
		return errorf("backup code count must be positive, got %d", e.backupCodeCount)
	}
	return nil
}

func defaultEngine(store Store) *Engine {
	return &Engine{
		store:           store,
		issuer:          DefaultIssuer,
		window:          totp.DefaultWindow,
		backupCodeCount: totp.DefaultBackupCodeCount,
		now:             time.Now,
		log:             slog.New(slog.DiscardHandler),
		metrics:         noopMetrics{},
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) BackupCodeConsumed()                            {}
