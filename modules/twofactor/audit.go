package twofactor

import (
	"context"
	"log/slog"

	"github.com/campusmind/twofactor/pkg/audit"
	"github.com/campusmind/twofactor/pkg/logger"
)

// Audit actions recorded by the module.
const (
	ActionSetup      = "2fa.setup"
	ActionEnable     = "2fa.enable"
	ActionVerify     = "2fa.verify"
	ActionDisable    = "2fa.disable"
	ActionRegenerate = "2fa.backup_codes.regenerate"
)

// Auditor records security events. *audit.Recorder satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...audit.EventOption) error
}

// WithAuditor records every state changing request.
func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// record writes one audit event for the caller. Errors the client caused
// are failures, anything unclassified is an error. A failing auditor never
// fails the request.
func (s *Service) record(ctx context.Context, action string, err error, opts ...audit.EventOption) {
	if s.auditor == nil {
		return
	}
	id, _ := IdentityFromContext(ctx)
	opts = append([]audit.EventOption{audit.WithUserID(id.ID)}, opts...)

	var aerr error
	if err == nil {
		aerr = s.auditor.Log(ctx, action, opts...)
	} else {
		if he, ok := Classify(err); ok && he.Code < 500 {
			opts = append(opts, audit.WithResult(audit.ResultFailure))
		}
		aerr = s.auditor.LogError(ctx, action, err, opts...)
	}
	if aerr != nil {
		s.log.WarnContext(ctx, "failed to record audit event",
			slog.String("action", action),
			logger.Error(aerr),
		)
	}
}
