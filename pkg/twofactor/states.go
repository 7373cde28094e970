package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/campusmind/twofactor/pkg/statemachine"
	"github.com/campusmind/twofactor/pkg/totp"
)

// Enrollment states. A disabled enrollment has no record and is NotSetUp again.
const (
	StateNotSetUp = statemachine.StringState("not_set_up")
	StatePending  = statemachine.StringState("pending")
	StateEnabled  = statemachine.StringState("enabled")
)

// Enrollment events, one per engine operation that changes a record.
const (
	EventBeginSetup      = statemachine.StringEvent("begin_setup")
	EventConfirmEnable   = statemachine.StringEvent("confirm_enable")
	EventVerify          = statemachine.StringEvent("verify")
	EventDisable         = statemachine.StringEvent("disable")
	EventRegenerateCodes = statemachine.StringEvent("regenerate_codes")
)

// StateOf derives the enrollment state of a loaded record.
func StateOf(rec *SecretRecord) statemachine.State {
	switch {
	case rec == nil:
		return StateNotSetUp
	case rec.Enabled:
		return StateEnabled
	default:
		return StatePending
	}
}

// attempt carries one code check through guards and actions.
type attempt struct {
	record *SecretRecord
	code   string
	now    time.Time

	// set by the guard that accepted the code
	step       int64
	usedBackup bool
}

func newTransitionTable(e *Engine) *statemachine.Table {
	return statemachine.MustNew(statemachine.WithTransitions([]statemachine.Transition{
		{From: StateNotSetUp, To: StatePending, Event: EventBeginSetup},
		{From: StatePending, To: StatePending, Event: EventBeginSetup},
		{From: StateEnabled, To: StatePending, Event: EventBeginSetup},

		{
			From: StatePending, To: StateEnabled, Event: EventConfirmEnable,
			Guards:  []statemachine.Guard{e.totpGuard},
			Actions: []statemachine.Action{applyMatch, markEnabled},
		},
		{
			From: StateEnabled, To: StateEnabled, Event: EventVerify,
			Guards:  []statemachine.Guard{e.codeGuard},
			Actions: []statemachine.Action{applyMatch},
		},
		{
			From: StateEnabled, To: StateNotSetUp, Event: EventDisable,
			Guards: []statemachine.Guard{e.codeGuard},
		},
		{
			From: StateEnabled, To: StateEnabled, Event: EventRegenerateCodes,
			Guards:  []statemachine.Guard{e.totpGuard},
			Actions: []statemachine.Action{applyMatch, e.rotateBackupCodes},
		},
	}...))
}

// totpGuard accepts only a TOTP code inside the window.
func (e *Engine) totpGuard(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	a, ok := data.(*attempt)
	if !ok {
		return false
	}
	step, ok := e.matchTOTP(a.record, a.code, a.now)
	if !ok {
		return false
	}
	a.step = step
	return true
}

// codeGuard accepts a TOTP code, falling back to an unused backup code.
func (e *Engine) codeGuard(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
	if e.totpGuard(ctx, from, event, data) {
		return true
	}
	a, ok := data.(*attempt)
	if !ok || !a.record.hasUnusedBackupCode(a.code) {
		return false
	}
	a.usedBackup = true
	return true
}

// matchTOTP verifies code against rec and, with replay protection on,
// refuses steps at or before the last accepted one.
func (e *Engine) matchTOTP(rec *SecretRecord, code string, now time.Time) (int64, bool) {
	step, ok := totp.VerifyStep(rec.Secret, code, e.window, now)
	if !ok {
		return 0, false
	}
	if e.replayProtection && rec.LastUsedStep != 0 && step <= rec.LastUsedStep {
		return 0, false
	}
	return step, true
}

func applyMatch(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	a := data.(*attempt)
	if a.usedBackup {
		if !a.record.ConsumeBackupCode(a.code) {
			return ErrConcurrentUpdate
		}
		return nil
	}
	a.record.LastUsedStep = max(a.record.LastUsedStep, a.step)
	return nil
}

func markEnabled(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	a := data.(*attempt)
	a.record.Enabled = true
	a.record.EnabledAt = a.now
	return nil
}

func (e *Engine) rotateBackupCodes(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	a := data.(*attempt)
	codes, err := totp.GenerateBackupCodes(e.backupCodeCount)
	if err != nil {
		return err
	}
	a.record.BackupCodes = codes
	a.record.UsedBackupCodes = nil
	return nil
}

// transitionError maps table errors onto the enrollment error taxonomy.
func transitionError(from statemachine.State, event statemachine.Event, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, statemachine.ErrNoTransition):
		switch {
		case event == EventConfirmEnable && from == StateEnabled:
			return ErrAlreadyEnabled
		case event == EventConfirmEnable:
			return ErrNotSetUp
		default:
			return ErrNotEnabled
		}
	case errors.Is(err, statemachine.ErrRejected):
		if event == EventDisable {
			return ErrUnauthorized
		}
		return ErrInvalidCode
	default:
		return err
	}
}
