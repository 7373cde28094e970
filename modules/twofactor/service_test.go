package twofactor_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/handler"
	module "github.com/campusmind/twofactor/modules/twofactor"
	"github.com/campusmind/twofactor/pkg/qrcode"
	"github.com/campusmind/twofactor/pkg/ratelimiter"
	"github.com/campusmind/twofactor/pkg/totp"
	"github.com/campusmind/twofactor/pkg/twofactor"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 15, 0, time.UTC)

type envelope struct {
	Data  json.RawMessage      `json:"data"`
	Error *handler.ErrorDetail `json:"error"`
}

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T, engineOpts []twofactor.Option, opts ...module.Option) *server {
	t.Helper()
	engine, err := twofactor.New(twofactor.NewMemoryStore(), append([]twofactor.Option{
		twofactor.WithClock(func() time.Time { return testNow }),
		twofactor.WithQRRenderer(qrcode.NewRenderer(128)),
	}, engineOpts...)...)
	require.NoError(t, err)

	opts = append([]module.Option{module.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return &server{t: t, handler: module.Router(module.NewService(engine, opts...))}
}

func (s *server) do(method, path, user, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		r.Header.Set(module.HeaderUserID, user)
		r.Header.Set(module.HeaderUserEmail, user+"@campus.edu")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.Nil(t, env.Error, "unexpected error %+v", env.Error)
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func codeBody(code string) string {
	return `{"code":"` + code + `"}`
}

func currentCode(setup twofactor.Setup) string {
	return totp.GenerateCodeAt(totp.DecodeBase32(setup.Secret), testNow)
}

func futureCode(setup twofactor.Setup) string {
	return totp.GenerateCode(totp.DecodeBase32(setup.Secret), totp.StepAt(testNow)+10)
}

func (s *server) enroll(user string) twofactor.Setup {
	s.t.Helper()
	w := s.do(http.MethodPost, "/2fa/setup", user, "")
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	setup := decode[twofactor.Setup](s.t, w)

	w = s.do(http.MethodPost, "/2fa/enable", user, codeBody(currentCode(setup)))
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return setup
}

func TestService_Lifecycle(t *testing.T) {
	t.Parallel()
	s := newServer(t, nil)

	w := s.do(http.MethodPost, "/2fa/setup", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
	setup := decode[twofactor.Setup](t, w)
	assert.Len(t, setup.BackupCodes, 8)
	assert.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/CampusMind:u1@campus.edu?secret="+setup.Secret)

	w = s.do(http.MethodGet, "/2fa/status", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, twofactor.Status{Pending: true}, decode[twofactor.Status](t, w))

	w = s.do(http.MethodPost, "/2fa/enable", "u1", codeBody(futureCode(setup)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_code", errorCode(t, w))

	w = s.do(http.MethodPost, "/2fa/enable", "u1", codeBody(currentCode(setup)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, setup.BackupCodes, decode[module.BackupCodesResponse](t, w).BackupCodes)

	w = s.do(http.MethodPost, "/2fa/verify", "u1", codeBody(currentCode(setup)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, twofactor.VerifyResult{Valid: true}, decode[twofactor.VerifyResult](t, w))

	w = s.do(http.MethodPost, "/2fa/verify", "u1", codeBody(futureCode(setup)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, twofactor.VerifyResult{}, decode[twofactor.VerifyResult](t, w))

	w = s.do(http.MethodPost, "/2fa/verify", "u1", codeBody(" "+setup.BackupCodes[0]+" "))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, twofactor.VerifyResult{Valid: true, UsedBackupCode: true}, decode[twofactor.VerifyResult](t, w))

	w = s.do(http.MethodGet, "/2fa/status", "u1", "")
	assert.Equal(t, twofactor.Status{Enabled: true, BackupCodesRemaining: 7}, decode[twofactor.Status](t, w))

	w = s.do(http.MethodPost, "/2fa/backup-codes", "u1", codeBody(currentCode(setup)))
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode[module.BackupCodesResponse](t, w).BackupCodes
	assert.Len(t, fresh, 8)
	assert.NotEqual(t, setup.BackupCodes, fresh)

	w = s.do(http.MethodGet, "/2fa/qr.png", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)

	w = s.do(http.MethodPost, "/2fa/disable", "u1", codeBody(setup.BackupCodes[1]))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "old backup codes are gone after regeneration")
	assert.Equal(t, "unauthorized", errorCode(t, w))

	w = s.do(http.MethodPost, "/2fa/disable", "u1", codeBody(fresh[0]))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())

	w = s.do(http.MethodGet, "/2fa/status", "u1", "")
	assert.Equal(t, twofactor.Status{}, decode[twofactor.Status](t, w))

	w = s.do(http.MethodPost, "/2fa/verify", "u1", codeBody("000000"))
	assert.Equal(t, twofactor.VerifyResult{Valid: true}, decode[twofactor.VerifyResult](t, w), "identities without 2FA pass")
}

func TestService_ErrorMapping(t *testing.T) {
	t.Parallel()

	t.Run("missing identity", func(t *testing.T) {
		t.Parallel()
		w := newServer(t, nil).do(http.MethodGet, "/2fa/status", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "missing_identity", errorCode(t, w))
	})

	t.Run("missing email", func(t *testing.T) {
		t.Parallel()
		s := newServer(t, nil)
		r := httptest.NewRequest(http.MethodPost, "/2fa/setup", nil)
		r.Header.Set(module.HeaderUserID, "u1")
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing_email", errorCode(t, w))
	})

	t.Run("enable before setup", func(t *testing.T) {
		t.Parallel()
		w := newServer(t, nil).do(http.MethodPost, "/2fa/enable", "u1", codeBody("123456"))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_set_up", errorCode(t, w))
	})

	t.Run("enable twice", func(t *testing.T) {
		t.Parallel()
		s := newServer(t, nil)
		setup := s.enroll("u1")
		w := s.do(http.MethodPost, "/2fa/enable", "u1", codeBody(currentCode(setup)))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "already_enabled", errorCode(t, w))
	})

	t.Run("disable while pending", func(t *testing.T) {
		t.Parallel()
		s := newServer(t, nil)
		w := s.do(http.MethodPost, "/2fa/setup", "u1", "")
		setup := decode[twofactor.Setup](t, w)

		w = s.do(http.MethodPost, "/2fa/disable", "u1", codeBody(currentCode(setup)))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "not_enabled", errorCode(t, w))
	})

	t.Run("qr before setup", func(t *testing.T) {
		t.Parallel()
		w := newServer(t, nil).do(http.MethodGet, "/2fa/qr.png", "u1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_set_up", errorCode(t, w))
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		w := newServer(t, nil).do(http.MethodPost, "/2fa/verify", "u1", `{"code":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", errorCode(t, w))
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		w := newServer(t, nil).do(http.MethodPost, "/2fa/verify", "u1", `{"code":"1","totp":"2"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", errorCode(t, w))
	})

	t.Run("too many attempts", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		t.Cleanup(store.Close)
		bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
		require.NoError(t, err)

		s := newServer(t, []twofactor.Option{twofactor.WithAttemptLimiter(bucket)})
		setup := s.enroll("u1")

		for range 2 {
			w := s.do(http.MethodPost, "/2fa/verify", "u1", codeBody(futureCode(setup)))
			require.Equal(t, http.StatusOK, w.Code)
		}
		w := s.do(http.MethodPost, "/2fa/verify", "u1", codeBody(currentCode(setup)))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "too_many_attempts", errorCode(t, w))
	})

	t.Run("store failure is opaque", func(t *testing.T) {
		t.Parallel()
		svc := module.NewService(failingEngine{err: errors.New("pq: connection refused to 10.1.2.3")},
			module.WithLogger(slog.New(slog.DiscardHandler)))
		r := httptest.NewRequest(http.MethodGet, "/2fa/status", nil)
		r.Header.Set(module.HeaderUserID, "u1")
		w := httptest.NewRecorder()
		module.Router(svc).ServeHTTP(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal_error", errorCode(t, w))
		assert.NotContains(t, w.Body.String(), "10.1.2.3")
	})

	t.Run("qr renderer missing", func(t *testing.T) {
		t.Parallel()
		svc := module.NewService(failingEngine{err: twofactor.ErrQRRendererNotConfigured},
			module.WithLogger(slog.New(slog.DiscardHandler)))
		r := httptest.NewRequest(http.MethodGet, "/2fa/qr.png", nil)
		r.Header.Set(module.HeaderUserID, "u1")
		w := httptest.NewRecorder()
		module.Router(svc).ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, "qr_unavailable", errorCode(t, w))
	})
}

func TestService_CustomIdentity(t *testing.T) {
	t.Parallel()
	fromToken := func(r *http.Request) (module.Identity, error) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			return module.Identity{}, twofactor.ErrMissingIdentity
		}
		return module.Identity{ID: "student-7", Email: "s7@campus.edu"}, nil
	}
	s := newServer(t, nil, module.WithIdentityFunc(fromToken))

	r := httptest.NewRequest(http.MethodPost, "/2fa/setup", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[twofactor.Setup](t, w).ProvisioningURI, "CampusMind:s7@campus.edu")

	w = s.do(http.MethodGet, "/2fa/status", "u1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	got, ok := module.Classify(errors.Join(errors.New("wrapped"), twofactor.ErrInvalidCode))
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, got.Code)
	assert.Equal(t, "invalid_code", got.Key)

	_, ok = module.Classify(twofactor.ErrConcurrentUpdate)
	assert.False(t, ok)
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()
	_, ok := module.IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := module.WithIdentity(context.Background(), module.Identity{ID: "u1"})
	id, ok := module.IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id.ID)
}

type failingEngine struct {
	err error
}

func (f failingEngine) BeginSetup(context.Context, string, string) (*twofactor.Setup, error) {
	return nil, f.err
}

func (f failingEngine) ConfirmEnable(context.Context, string, string) ([]string, error) {
	return nil, f.err
}

func (f failingEngine) Verify(context.Context, string, string) (twofactor.VerifyResult, error) {
	return twofactor.VerifyResult{}, f.err
}

func (f failingEngine) Disable(context.Context, string, string) error {
	return f.err
}

func (f failingEngine) RegenerateBackupCodes(context.Context, string, string) ([]string, error) {
	return nil, f.err
}

func (f failingEngine) Status(context.Context, string) (twofactor.Status, error) {
	return twofactor.Status{}, f.err
}

func (f failingEngine) QRCode(context.Context, string) ([]byte, error) {
	return nil, f.err
}
