package totp

import "errors"

var (
	ErrRandomSource           = errors.New("totp: read random bytes")
	ErrMissingSecret          = errors.New("totp: secret is empty")
	ErrMissingAccountName     = errors.New("totp: account name is empty")
	ErrMissingIssuer          = errors.New("totp: issuer is empty")
	ErrInvalidBackupCodeCount = errors.New("totp: backup code count must be positive")
	ErrBackupCodeSpace        = errors.New("totp: ran out of distinct backup codes")
)
