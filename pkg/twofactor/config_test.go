package twofactor_test

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/twofactor"
)

func TestConfig_Defaults(t *testing.T) {
	cfg, err := env.ParseAs[twofactor.Config]()
	require.NoError(t, err)

	assert.Equal(t, "CampusMind", cfg.Issuer)
	assert.Equal(t, 1, cfg.Window)
	assert.Equal(t, 8, cfg.BackupCodes)
	assert.False(t, cfg.ReplayProtection)
	assert.Equal(t, 256, cfg.QRSize)
	assert.Equal(t, 5, cfg.AttemptsCapacity)
	assert.Equal(t, 30*time.Second, cfg.AttemptsRefill)

	limits := cfg.AttemptLimits()
	assert.Equal(t, 5, limits.Capacity)
	assert.Equal(t, 1, limits.RefillRate)
	assert.Equal(t, 30*time.Second, limits.RefillInterval)
}

func TestConfig_FromEnvironment(t *testing.T) {
	t.Setenv("TWOFACTOR_ISSUER", "CampusMind Staging")
	t.Setenv("TWOFACTOR_WINDOW", "2")
	t.Setenv("TWOFACTOR_BACKUP_CODES", "10")
	t.Setenv("TWOFACTOR_REPLAY_PROTECTION", "true")

	cfg, err := env.ParseAs[twofactor.Config]()
	require.NoError(t, err)

	engine, err := twofactor.New(twofactor.NewMemoryStore(), cfg.Options()...)
	require.NoError(t, err)

	setup, err := engine.BeginSetup(t.Context(), "u1", "u1@campus.edu")
	require.NoError(t, err)
	assert.Len(t, setup.BackupCodes, 10)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/CampusMind%20Staging:u1@campus.edu?")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() twofactor.Config {
		return twofactor.Config{
			Issuer:           "CampusMind",
			Window:           1,
			BackupCodes:      8,
			AttemptsCapacity: 5,
			AttemptsRefill:   30 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*twofactor.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*twofactor.Config) {}},
		{name: "limiter disabled", mutate: func(c *twofactor.Config) { c.AttemptsCapacity, c.AttemptsRefill = 0, 0 }},
		{name: "empty issuer", mutate: func(c *twofactor.Config) { c.Issuer = "" }, wantErr: "TWOFACTOR_ISSUER"},
		{name: "negative window", mutate: func(c *twofactor.Config) { c.Window = -1 }, wantErr: "TWOFACTOR_WINDOW"},
		{name: "no backup codes", mutate: func(c *twofactor.Config) { c.BackupCodes = 0 }, wantErr: "TWOFACTOR_BACKUP_CODES"},
		{name: "negative capacity", mutate: func(c *twofactor.Config) { c.AttemptsCapacity = -1 }, wantErr: "TWOFACTOR_ATTEMPTS_CAPACITY"},
		{name: "zero refill", mutate: func(c *twofactor.Config) { c.AttemptsRefill = 0 }, wantErr: "TWOFACTOR_ATTEMPTS_REFILL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, twofactor.ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store twofactor.Store
		opts  []twofactor.Option
	}{
		{name: "nil store", store: nil},
		{name: "empty issuer", store: twofactor.NewMemoryStore(), opts: []twofactor.Option{twofactor.WithIssuer("")}},
		{name: "negative window", store: twofactor.NewMemoryStore(), opts: []twofactor.Option{twofactor.WithWindow(-1)}},
		{name: "no backup codes", store: twofactor.NewMemoryStore(), opts: []twofactor.Option{twofactor.WithBackupCodeCount(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := twofactor.New(tt.store, tt.opts...)
			assert.ErrorIs(t, err, twofactor.ErrInvalidConfig)
			assert.Panics(t, func() { twofactor.MustNew(tt.store, tt.opts...) })
		})
	}
}
