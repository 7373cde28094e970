// Package twofactor is the CampusMind two-factor authentication engine.
//
// An Engine drives each identity through the enrollment lifecycle
//
//	not_set_up --BeginSetup--> pending --ConfirmEnable--> enabled --Disable--> not_set_up
//
// with RegenerateBackupCodes as a side transition on enabled records. The
// transitions, their code checks and their effects are declared once in a
// statemachine.Table; every operation derives the current state from the
// stored SecretRecord and fires the matching event.
//
// Verification is optional until enabled: Verify reports Valid=true for
// identities without an enabled record.
//
// # Storage
//
// Records live behind the Store interface. All mutating operations except
// BeginSetup go through Store.Update, which must be atomic per identity so
// that two concurrent logins cannot spend the same backup code. MemoryStore is
// the in-process implementation; durable adapters live in pkg/redis, pkg/pg,
// pkg/mongo and pkg/bolt and encode records with a Codec, optionally sealed
// with pkg/secrets.
//
// # Usage
//
//	engine := twofactor.MustNew(twofactor.NewMemoryStore(),
//	    twofactor.WithIssuer("CampusMind"),
//	    twofactor.WithQRRenderer(qrcode.NewRenderer(256)),
//	)
//
//	setup, err := engine.BeginSetup(ctx, userID, email)
//	// show setup.ProvisioningURI / setup.QRCode and setup.BackupCodes
//
//	codes, err := engine.ConfirmEnable(ctx, userID, typedCode)
//
//	res, err := engine.Verify(ctx, userID, typedCode)
//	if err == nil && !res.Valid {
//	    // deny login
//	}
//
// # Errors
//
// Operations return the sentinels from errors.go (ErrNotSetUp,
// ErrAlreadyEnabled, ErrNotEnabled, ErrInvalidCode, ErrUnauthorized,
// ErrTooManyAttempts). Store failures are returned unchanged and are never
// retried by the engine. Use errors.Is to classify.
//
// # Replay
//
// The last accepted TOTP step is recorded on every success. With
// WithReplayProtection(true) a code whose step is not newer is refused, so a
// code observed over a shoulder cannot be reused inside the window.
package twofactor
