package twofactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/campusmind/twofactor/pkg/ratelimiter"
)

// Config holds the engine settings read from the environment.
type Config struct {
	Issuer           string `env:"TWOFACTOR_ISSUER" envDefault:"CampusMind"`
	Window           int    `env:"TWOFACTOR_WINDOW" envDefault:"1"`
	BackupCodes      int    `env:"TWOFACTOR_BACKUP_CODES" envDefault:"8"`
	ReplayProtection bool   `env:"TWOFACTOR_REPLAY_PROTECTION" envDefault:"false"`
	QRSize           int    `env:"TWOFACTOR_QR_SIZE" envDefault:"256"`

	// EncryptionKey is a base64 32-byte key sealing records in durable stores.
	EncryptionKey string `env:"TWOFACTOR_ENCRYPTION_KEY"`

	AttemptsCapacity int           `env:"TWOFACTOR_ATTEMPTS_CAPACITY" envDefault:"5"`
	AttemptsRefill   time.Duration `env:"TWOFACTOR_ATTEMPTS_REFILL" envDefault:"30s"`
}

// Validate rejects settings New would refuse. It runs when the config is
// loaded through pkg/config.
func (c Config) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("TWOFACTOR_ISSUER must not be empty"))
	}
	if c.Window < 0 {
		errs = append(errs, fmt.Errorf("TWOFACTOR_WINDOW must not be negative, got %d", c.Window))
	}
	if c.BackupCodes < 1 {
		errs = append(errs, fmt.Errorf("TWOFACTOR_BACKUP_CODES must be positive, got %d", c.BackupCodes))
	}
	if c.AttemptsCapacity < 0 {
		errs = append(errs, fmt.Errorf("TWOFACTOR_ATTEMPTS_CAPACITY must not be negative, got %d", c.AttemptsCapacity))
	}
	if c.AttemptsCapacity > 0 && c.AttemptsRefill <= 0 {
		errs = append(errs, fmt.Errorf("TWOFACTOR_ATTEMPTS_REFILL must be positive, got %s", c.AttemptsRefill))
	}
	if len(errs) > 0 {
		return errors.Join(ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LimitAttempts reports whether an attempt limiter should be installed.
func (c Config) LimitAttempts() bool {
	return c.AttemptsCapacity > 0
}

// Options translates the config into engine options.
func (c Config) Options() []Option {
	return []Option{
		WithIssuer(c.Issuer),
		WithWindow(c.Window),
		WithBackupCodeCount(c.BackupCodes),
		WithReplayProtection(c.ReplayProtection),
	}
}

// AttemptLimits is the token bucket config for WithAttemptLimiter:
// AttemptsCapacity attempts in a burst, one more every AttemptsRefill.
func (c Config) AttemptLimits() ratelimiter.Config {
	return ratelimiter.Config{
		Capacity:       c.AttemptsCapacity,
		RefillRate:     1,
		RefillInterval: c.AttemptsRefill,
	}
}
