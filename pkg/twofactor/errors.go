package twofactor

import "errors"

// Enrollment and verification errors. None of them is transient.
var (
	ErrNotSetUp       = errors.New("two-factor authentication is not set up")
	ErrAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrNotEnabled     = errors.New("two-factor authentication is not enabled")
	ErrInvalidCode    = errors.New("invalid verification code")
	ErrUnauthorized   = errors.New("verification failed for a protected operation")

	ErrTooManyAttempts         = errors.New("too many verification attempts")
	ErrQRRendererNotConfigured = errors.New("qr renderer is not configured")
	ErrMissingIdentity         = errors.New("missing identity")
	ErrMissingEmail            = errors.New("missing email")
	ErrInvalidConfig           = errors.New("invalid two-factor configuration")
)

// Store errors.
var (
	ErrRecordNotFound   = errors.New("secret record not found")
	ErrConcurrentUpdate = errors.New("secret record was modified concurrently")
	ErrCorruptRecord    = errors.New("secret record cannot be decoded")

	// ErrDeleteRecord is returned from an Update callback to remove the
	// record in the same atomic step. Update then returns (nil, nil).
	ErrDeleteRecord = errors.New("delete record")
)
