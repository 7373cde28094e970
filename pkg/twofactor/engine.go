package twofactor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/campusmind/twofactor/pkg/logger"
	"github.com/campusmind/twofactor/pkg/statemachine"
	"github.com/campusmind/twofactor/pkg/totp"
)

// Setup is returned by BeginSetup. It is the only time the secret leaves the engine.
type Setup struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCode          string   `json:"qr_code,omitempty"`
	BackupCodes     []string `json:"backup_codes"`
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	Valid          bool `json:"valid"`
	UsedBackupCode bool `json:"used_backup_code"`
}

// Status is returned by Status.
type Status struct {
	Enabled              bool `json:"enabled"`
	Pending              bool `json:"pending"`
	BackupCodesRemaining int  `json:"backup_codes_remaining"`
}

// Engine orchestrates enrollment and verification on top of a Store.
// It is safe for concurrent use; per-identity atomicity comes from Store.Update.
type Engine struct {
	store            Store
	issuer           string
	window           int
	backupCodeCount  int
	replayProtection bool
	now              func() time.Time
	qr               QRRenderer
	limiter          AttemptLimiter
	metrics          Metrics
	log              *slog.Logger
	machine          statemachine.Machine
}

// New creates an Engine.
func New(store Store, opts ...Option) (*Engine, error) {
	e := defaultEngine(store)
	for _, opt := range opts {
		opt(e)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}

	e.log = e.log.With(logger.Component("twofactor"))
	e.machine = newTransitionTable(e)
	return e, nil
}

// MustNew is New that panics on invalid options.
func MustNew(store Store, opts ...Option) *Engine {
	e, err := New(store, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create two-factor engine: %v", err))
	}
	return e
}

// BeginSetup creates a fresh pending enrollment, replacing any existing one.
func (e *Engine) BeginSetup(ctx context.Context, identity, email string) (_ *Setup, err error) {
	const op = "begin_setup"
	defer e.observe(ctx, op, identity, time.Now(), &err)

	if identity == "" {
		return nil, ErrMissingIdentity
	}
	if email == "" {
		return nil, ErrMissingEmail
	}

	current, err := e.store.Get(ctx, identity)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	if _, err := e.machine.Fire(ctx, StateOf(current), EventBeginSetup, nil); err != nil {
		return nil, transitionError(StateOf(current), EventBeginSetup, err)
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	codes, err := totp.GenerateBackupCodes(e.backupCodeCount)
	if err != nil {
		return nil, err
	}

	encoded := totp.EncodeBase32(secret)
	uri, err := e.provisioningURI(encoded, email)
	if err != nil {
		return nil, err
	}

	now := e.now()
	rec := &SecretRecord{
		Secret:      secret,
		Email:       email,
		BackupCodes: codes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.Put(ctx, identity, rec); err != nil {
		return nil, err
	}

	return &Setup{
		Secret:          encoded,
		ProvisioningURI: uri,
		QRCode:          e.qrDataURI(ctx, identity, uri),
		BackupCodes:     slices.Clone(codes),
	}, nil
}

// ConfirmEnable switches a pending enrollment to enabled after one valid TOTP
// code and returns the backup codes issued at setup.
func (e *Engine) ConfirmEnable(ctx context.Context, identity, code string) (_ []string, err error) {
	const op = "confirm_enable"
	defer e.observe(ctx, op, identity, time.Now(), &err)

	if err := e.allowAttempt(ctx, identity); err != nil {
		return nil, err
	}

	rec, err := e.transition(ctx, identity, code, EventConfirmEnable)
	if err != nil {
		return nil, err
	}
	e.resetAttempts(ctx, identity)
	return slices.Clone(rec.BackupCodes), nil
}

// Verify checks a login code. Identities without an enabled enrollment pass.
// A wrong code yields Valid=false and no error.
func (e *Engine) Verify(ctx context.Context, identity, code string) (VerifyResult, error) {
	const op = "verify"
	started := time.Now()

	res, err := e.verify(ctx, identity, code)
	e.observe(ctx, op, identity, started, &err)

	if errors.Is(err, ErrInvalidCode) {
		return VerifyResult{}, nil
	}
	return res, err
}

func (e *Engine) verify(ctx context.Context, identity, code string) (VerifyResult, error) {
	if err := e.allowAttempt(ctx, identity); err != nil {
		return VerifyResult{}, err
	}

	var usedBackup bool
	_, err := e.store.Update(ctx, identity, func(rec *SecretRecord) error {
		a, err := e.fire(ctx, rec, code, EventVerify)
		usedBackup = err == nil && a.usedBackup
		return err
	})

	switch {
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrNotEnabled):
		// enrollment is optional until enabled
		e.resetAttempts(ctx, identity)
		return VerifyResult{Valid: true}, nil
	case err != nil:
		return VerifyResult{}, err
	}

	if usedBackup {
		e.metrics.BackupCodeConsumed()
		e.log.InfoContext(ctx, "backup code consumed", logger.Identity(identity))
	}
	e.resetAttempts(ctx, identity)
	return VerifyResult{Valid: true, UsedBackupCode: usedBackup}, nil
}

// Disable removes an enabled enrollment after a TOTP or unused backup code.
func (e *Engine) Disable(ctx context.Context, identity, code string) (err error) {
	const op = "disable"
	defer e.observe(ctx, op, identity, time.Now(), &err)

	if err := e.allowAttempt(ctx, identity); err != nil {
		return err
	}

	if _, err := e.transition(ctx, identity, code, EventDisable); err != nil {
		return err
	}
	e.resetAttempts(ctx, identity)
	return nil
}

// RegenerateBackupCodes replaces all backup codes. Only a TOTP code is
// accepted, so a backup code cannot mint new ones.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, identity, code string) (_ []string, err error) {
	const op = "regenerate_backup_codes"
	defer e.observe(ctx, op, identity, time.Now(), &err)

	if err := e.allowAttempt(ctx, identity); err != nil {
		return nil, err
	}

	rec, err := e.transition(ctx, identity, code, EventRegenerateCodes)
	if err != nil {
		return nil, err
	}
	e.resetAttempts(ctx, identity)
	return slices.Clone(rec.BackupCodes), nil
}

// Status reports the enrollment state without side effects.
func (e *Engine) Status(ctx context.Context, identity string) (Status, error) {
	if identity == "" {
		return Status{}, ErrMissingIdentity
	}

	rec, err := e.store.Get(ctx, identity)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return Status{}, nil
	case err != nil:
		e.log.ErrorContext(ctx, "failed to load secret record", logger.Identity(identity), logger.Error(err))
		return Status{}, err
	case !rec.Enabled:
		return Status{Pending: true}, nil
	}

	return Status{Enabled: true, BackupCodesRemaining: rec.RemainingBackupCodes()}, nil
}

// QRCode renders the provisioning URI of a pending or enabled enrollment as PNG.
func (e *Engine) QRCode(ctx context.Context, identity string) ([]byte, error) {
	if identity == "" {
		return nil, ErrMissingIdentity
	}
	if e.qr == nil {
		return nil, ErrQRRendererNotConfigured
	}

	rec, err := e.store.Get(ctx, identity)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrNotSetUp
	}
	if err != nil {
		return nil, err
	}

	uri, err := e.provisioningURI(totp.EncodeBase32(rec.Secret), rec.Email)
	if err != nil {
		return nil, err
	}
	return e.qr.Render(uri)
}

// transition runs event against the stored record in one atomic update.
// The returned record is nil when the transition deleted it.
func (e *Engine) transition(ctx context.Context, identity, code string, event statemachine.Event) (*SecretRecord, error) {
	if identity == "" {
		return nil, ErrMissingIdentity
	}

	rec, err := e.store.Update(ctx, identity, func(rec *SecretRecord) error {
		_, err := e.fire(ctx, rec, code, event)
		return err
	})
	if errors.Is(err, ErrRecordNotFound) {
		// let the table reject the event from NotSetUp
		_, ferr := e.machine.Fire(ctx, StateNotSetUp, event, nil)
		if ferr == nil {
			return nil, ErrNotSetUp
		}
		return nil, transitionError(StateNotSetUp, event, ferr)
	}
	return rec, err
}

// fire applies event to rec in place. A transition into NotSetUp asks the
// store to delete the record.
func (e *Engine) fire(ctx context.Context, rec *SecretRecord, code string, event statemachine.Event) (*attempt, error) {
	from := StateOf(rec)
	a := &attempt{record: rec, code: code, now: e.now()}

	to, err := e.machine.Fire(ctx, from, event, a)
	if err != nil {
		return a, transitionError(from, event, err)
	}
	if to == StateNotSetUp {
		return a, ErrDeleteRecord
	}
	rec.UpdatedAt = a.now
	return a, nil
}

func (e *Engine) provisioningURI(secret, email string) (string, error) {
	return totp.ProvisioningURI(totp.URIParams{
		Secret:      secret,
		AccountName: email,
		Issuer:      e.issuer,
	})
}

// qrDataURI is best effort: the URI alone is enough to enroll.
func (e *Engine) qrDataURI(ctx context.Context, identity, uri string) string {
	if e.qr == nil {
		return ""
	}
	png, err := e.qr.Render(uri)
	if err != nil {
		e.log.WarnContext(ctx, "failed to render qr code", logger.Identity(identity), logger.Error(err))
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func (e *Engine) allowAttempt(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrMissingIdentity
	}
	if e.limiter == nil {
		return nil
	}

	res, err := e.limiter.Allow(ctx, attemptKey(identity))
	if err != nil {
		return errors.Join(ErrTooManyAttempts, err)
	}
	if !res.Allowed() {
		return ErrTooManyAttempts
	}
	return nil
}

func (e *Engine) resetAttempts(ctx context.Context, identity string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.Reset(ctx, attemptKey(identity)); err != nil {
		e.log.WarnContext(ctx, "failed to reset attempt counter", logger.Identity(identity), logger.Error(err))
	}
}

func attemptKey(identity string) string {
	return "2fa:" + identity
}

func (e *Engine) observe(ctx context.Context, op, identity string, started time.Time, errp *error) {
	err := *errp
	outcome := Outcome(err)
	e.metrics.ObserveOperation(op, outcome, time.Since(started))

	attrs := []any{logger.Operation(op), logger.Identity(identity), logger.Outcome(outcome)}
	switch {
	case err == nil:
		e.log.InfoContext(ctx, "two-factor operation completed", attrs...)
	case isRejection(err):
		e.log.WarnContext(ctx, "two-factor operation rejected", attrs...)
	default:
		e.log.ErrorContext(ctx, "two-factor operation failed", append(attrs, logger.Error(err))...)
	}
}

// Outcome labels err for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrNotSetUp):
		return "not_set_up"
	case errors.Is(err, ErrAlreadyEnabled):
		return "already_enabled"
	case errors.Is(err, ErrNotEnabled):
		return "not_enabled"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrMissingIdentity), errors.Is(err, ErrMissingEmail):
		return "bad_request"
	default:
		return "error"
	}
}

func isRejection(err error) bool {
	switch Outcome(err) {
	case "error":
		return false
	default:
		return true
	}
}

func errorf(format string, args ...any) error {
	return errors.Join(ErrInvalidConfig, fmt.Errorf(format, args...))
}
