package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultDigits    = 6      // Standard 6-digit TOTP codes
	DefaultPeriod    = 30     // 30-second step (RFC 6238 standard)
	DefaultAlgorithm = "SHA1" // HMAC-SHA1 (RFC 6238 standard)
	DefaultWindow    = 1      // Steps accepted on each side of the current one
	SecretSize       = 20     // 160-bit secret (RFC 4226 recommendation)
)

var powersOfTen = [...]uint32{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000}

// GenerateSecret draws a fresh shared secret from crypto/rand.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Join(ErrRandomSource, err)
	}
	return secret, nil
}

// CurrentStep returns floor(epochSeconds / 30).
func CurrentStep(epochSeconds int64) int64 {
	step := epochSeconds / DefaultPeriod
	if epochSeconds < 0 && epochSeconds%DefaultPeriod != 0 {
		step--
	}
	return step
}

// StepAt is CurrentStep for a wall-clock time.
func StepAt(t time.Time) int64 {
	return CurrentStep(t.Unix())
}

// GenerateHOTP implements the RFC 4226 HMAC-based One-Time Password algorithm
// with HMAC-SHA1. digits must be in [1, 9].
func GenerateHOTP(key []byte, counter int64, digits int) int {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation: the low nibble of the last byte selects 4 bytes,
	// the top bit is masked so the value stays within 31 bits.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return int(value % powersOfTen[digits])
}

// GenerateCode returns the zero-padded 6-digit code for the given step.
func GenerateCode(secret []byte, step int64) string {
	return fmt.Sprintf("%0*d", DefaultDigits, GenerateHOTP(secret, step, DefaultDigits))
}

// GenerateCodeAt returns the code for the step containing t.
func GenerateCodeAt(secret []byte, t time.Time) string {
	return GenerateCode(secret, StepAt(t))
}

// Verify reports whether code matches any step in [T-window, T+window] where
// T is the step containing now.
func Verify(secret []byte, code string, window int, now time.Time) bool {
	_, ok := VerifyStep(secret, code, window, now)
	return ok
}

// VerifyStep is Verify that also returns the matched step.
// Codes of the wrong length are rejected before any HMAC is computed.
func VerifyStep(secret []byte, code string, window int, now time.Time) (int64, bool) {
	if len(code) != DefaultDigits || len(secret) == 0 {
		return 0, false
	}
	if window < 0 {
		window = 0
	}

	current := StepAt(now)
	for step := current - int64(window); step <= current+int64(window); step++ {
		expected := GenerateCode(secret, step)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}
