package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/audit"
	"github.com/campusmind/twofactor/pkg/clientip"
	"github.com/campusmind/twofactor/pkg/config"
	"github.com/campusmind/twofactor/pkg/environment"
	"github.com/campusmind/twofactor/pkg/requestid"
	"github.com/campusmind/twofactor/pkg/secrets"
	"github.com/campusmind/twofactor/pkg/twofactor"
)

var discard = slog.New(slog.DiscardHandler)

func testTwoFactorConfig() twofactor.Config {
	return twofactor.Config{
		Issuer:           "CampusMind",
		Window:           1,
		BackupCodes:      8,
		QRSize:           128,
		AttemptsCapacity: 5,
		AttemptsRefill:   30 * time.Second,
	}
}

func newTestRouter(t *testing.T, b *backend) http.Handler {
	t.Helper()
	r, err := newRouter(routerDeps{
		env:       environment.Development,
		log:       discard,
		cfg:       testTwoFactorConfig(),
		backend:   b,
		registry:  newRegistry(),
		healthTTL: time.Second,
	})
	require.NoError(t, err)
	return r
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRouter(t *testing.T) {
	b, err := openBackend(context.Background(), storeMemory, twofactor.NewCodec(nil), discard)
	require.NoError(t, err)
	t.Cleanup(b.close)
	h := newTestRouter(t, b)

	t.Run("liveness", func(t *testing.T) {
		w := get(t, h, "/health/live", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(requestid.Header))
	})

	t.Run("readiness", func(t *testing.T) {
		w := get(t, h, "/health/ready", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ready"`)
	})

	t.Run("two-factor module is mounted", func(t *testing.T) {
		w := get(t, h, "/2fa/status", http.Header{"X-User-Id": {"u1"}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"enabled":false,"pending":false,"backup_codes_remaining":0}}`, w.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		w := get(t, h, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body, err := io.ReadAll(w.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `campusmind_http_requests_total{method="GET",route="/2fa/status",status="200"}`)
		assert.Contains(t, string(body), "go_goroutines")
	})
}

func TestOpenBackend(t *testing.T) {
	t.Run("bolt", func(t *testing.T) {
		config.ResetCache()
		t.Cleanup(config.ResetCache)
		t.Setenv("BOLT_PATH", filepath.Join(t.TempDir(), "2fa.db"))

		key, err := secrets.GenerateKey()
		require.NoError(t, err)
		sealer, err := secrets.NewSealer(key)
		require.NoError(t, err)

		b, err := openBackend(context.Background(), storeBolt, twofactor.NewCodec(sealer), discard)
		require.NoError(t, err)
		t.Cleanup(b.close)

		require.Contains(t, b.checks, storeBolt)
		assert.NoError(t, b.checks[storeBolt](context.Background()))

		h := newTestRouter(t, b)
		r := httptest.NewRequest(http.MethodPost, "/2fa/setup", nil)
		r.Header.Set("X-User-ID", "u1")
		r.Header.Set("X-User-Email", "u1@campus.edu")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)

		rec, err := b.secrets.Get(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1@campus.edu", rec.Email)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := openBackend(context.Background(), "cassandra", nil, discard)
		assert.ErrorIs(t, err, twofactor.ErrInvalidConfig)
	})
}

func TestNewCodec(t *testing.T) {
	cfg := testTwoFactorConfig()

	codec, err := newCodec(cfg, environment.Production, storeMemory, discard)
	require.NoError(t, err)
	assert.False(t, codec.Sealed())

	_, err = newCodec(cfg, environment.Production, storePostgres, discard)
	assert.ErrorIs(t, err, twofactor.ErrInvalidConfig)

	codec, err = newCodec(cfg, environment.Development, storeBolt, discard)
	require.NoError(t, err)
	assert.False(t, codec.Sealed())

	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	cfg.EncryptionKey = secrets.EncodeKey(key)
	codec, err = newCodec(cfg, environment.Production, storePostgres, discard)
	require.NoError(t, err)
	assert.True(t, codec.Sealed())

	cfg.EncryptionKey = strings.Repeat("!", 10)
	_, err = newCodec(cfg, environment.Production, storePostgres, discard)
	assert.Error(t, err)
}

type auditSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *auditSink) Store(_ context.Context, e audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func TestRouter_Audit(t *testing.T) {
	b, err := openBackend(context.Background(), storeMemory, twofactor.NewCodec(nil), discard)
	require.NoError(t, err)
	t.Cleanup(b.close)

	proxies, err := clientip.ParsePrefixes([]string{"192.0.2.0/24"})
	require.NoError(t, err)

	sink := &auditSink{}
	h, err := newRouter(routerDeps{
		env:       environment.Development,
		log:       discard,
		cfg:       testTwoFactorConfig(),
		backend:   b,
		registry:  prometheus.NewRegistry(),
		healthTTL: time.Second,
		audit:     sink,
		clientIP:  clientip.New(proxies...),
	})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/2fa/setup", nil)
	r.RemoteAddr = "192.0.2.1:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.23")
	r.Header.Set("X-User-ID", "u1")
	r.Header.Set("X-User-Email", "u1@campus.edu")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	e := sink.events[0]
	assert.Equal(t, "2fa.setup", e.Action)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "198.51.100.23", e.IP)
	assert.Equal(t, w.Header().Get(requestid.Header), e.RequestID)
}

func TestOpenAudit(t *testing.T) {
	b, err := openBackend(context.Background(), storeMemory, twofactor.NewCodec(nil), discard)
	require.NoError(t, err)
	t.Cleanup(b.close)

	w, err := b.openAudit(auditOff, discard)
	require.NoError(t, err)
	assert.Nil(t, w)

	w, err = b.openAudit(auditLog, discard)
	require.NoError(t, err)
	assert.IsType(t, &audit.AsyncWriter{}, w)

	_, err = b.openAudit(auditStore, discard)
	assert.ErrorIs(t, err, twofactor.ErrInvalidConfig)

	_, err = b.openAudit("kafka", discard)
	assert.ErrorIs(t, err, twofactor.ErrInvalidConfig)
}
