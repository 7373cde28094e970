package twofactor

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/campusmind/twofactor/handler"
	"github.com/campusmind/twofactor/pkg/audit"
	"github.com/campusmind/twofactor/pkg/binder"
	"github.com/campusmind/twofactor/pkg/twofactor"
)

// Engine is the part of *twofactor.Engine the HTTP module drives.
type Engine interface {
	BeginSetup(ctx context.Context, identity, email string) (*twofactor.Setup, error)
	ConfirmEnable(ctx context.Context, identity, code string) ([]string, error)
	Verify(ctx context.Context, identity, code string) (twofactor.VerifyResult, error)
	Disable(ctx context.Context, identity, code string) error
	RegenerateBackupCodes(ctx context.Context, identity, code string) ([]string, error)
	Status(ctx context.Context, identity string) (twofactor.Status, error)
	QRCode(ctx context.Context, identity string) ([]byte, error)
}

// Service exposes the engine over JSON HTTP.
type Service struct {
	engine       Engine
	identity     IdentityFunc
	errorHandler handler.ErrorHandler
	auditor      Auditor
	log          *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIdentityFunc overrides how the caller is resolved. Defaults to HeaderIdentity.
func WithIdentityFunc(fn IdentityFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.identity = fn
		}
	}
}

// WithErrorHandler overrides the error handler. The default logs through
// slog.Default and maps errors with Classify.
func WithErrorHandler(h handler.ErrorHandler) Option {
	return func(s *Service) {
		if h != nil {
			s.errorHandler = h
		}
	}
}

// WithLogger builds the default error handler on top of log.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
			s.errorHandler = handler.NewErrorHandler(log, Classify)
		}
	}
}

// NewService creates the HTTP module for engine.
func NewService(engine Engine, opts ...Option) *Service {
	s := &Service{
		engine:       engine,
		identity:     HeaderIdentity(),
		errorHandler: handler.NewErrorHandler(nil, Classify),
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CodeRequest carries a TOTP or backup code.
type CodeRequest struct {
	Code string `json:"code"`
}

// BackupCodesResponse is returned by enable and backup code regeneration.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

type noRequest struct{}

// Handle returns the router, meant to be mounted at /2fa:
//
//	POST /setup         begin or restart enrollment
//	POST /enable        confirm enrollment with a TOTP code
//	POST /verify        check a login code
//	POST /disable       remove enrollment, 204 on success
//	POST /backup-codes  replace backup codes
//	GET  /status        enrollment summary
//	GET  /qr.png        provisioning QR code
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Use(requireIdentity(s.identity, s.errorHandler))

	r.Post("/setup", handler.Wrap(s.setup,
		handler.WithErrorHandler(s.errorHandler),
	))
	r.Post("/enable", s.withCode(s.enable))
	r.Post("/verify", s.withCode(s.verify))
	r.Post("/disable", s.withCode(s.disable))
	r.Post("/backup-codes", s.withCode(s.regenerate))
	r.Get("/status", handler.Wrap(s.status,
		handler.WithErrorHandler(s.errorHandler),
	))
	r.Get("/qr.png", handler.Wrap(s.qrCode,
		handler.WithErrorHandler(s.errorHandler),
	))

	return r
}

func (s *Service) withCode(h handler.HandlerFunc[CodeRequest]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinder(binder.JSON()),
		handler.WithErrorHandler(s.errorHandler),
	)
}

func caller(ctx handler.Context) Identity {
	id, _ := IdentityFromContext(ctx)
	return id
}

func (s *Service) setup(ctx handler.Context, _ noRequest) handler.Response {
	id := caller(ctx)
	setup, err := s.engine.BeginSetup(ctx, id.ID, id.Email)
	s.record(ctx, ActionSetup, err)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(setup)
}

func (s *Service) enable(ctx handler.Context, req CodeRequest) handler.Response {
	codes, err := s.engine.ConfirmEnable(ctx, caller(ctx).ID, req.Code)
	s.record(ctx, ActionEnable, err)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(BackupCodesResponse{BackupCodes: codes})
}

func (s *Service) verify(ctx handler.Context, req CodeRequest) handler.Response {
	res, err := s.engine.Verify(ctx, caller(ctx).ID, req.Code)
	outcome := err
	if err == nil && !res.Valid {
		outcome = twofactor.ErrInvalidCode
	}
	s.record(ctx, ActionVerify, outcome, audit.WithMetadata("backup_code", res.UsedBackupCode))
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(res)
}

func (s *Service) disable(ctx handler.Context, req CodeRequest) handler.Response {
	err := s.engine.Disable(ctx, caller(ctx).ID, req.Code)
	s.record(ctx, ActionDisable, err)
	if err != nil {
		return handler.Error(err)
	}
	return handler.Empty()
}

func (s *Service) regenerate(ctx handler.Context, req CodeRequest) handler.Response {
	codes, err := s.engine.RegenerateBackupCodes(ctx, caller(ctx).ID, req.Code)
	s.record(ctx, ActionRegenerate, err)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(BackupCodesResponse{BackupCodes: codes})
}

func (s *Service) status(ctx handler.Context, _ noRequest) handler.Response {
	st, err := s.engine.Status(ctx, caller(ctx).ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(st)
}

func (s *Service) qrCode(ctx handler.Context, _ noRequest) handler.Response {
	png, err := s.engine.QRCode(ctx, caller(ctx).ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.Blob("image/png", png)
}
