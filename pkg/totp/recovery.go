package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	DefaultBackupCodeCount = 8
	backupCodeBytes        = 4
	// maxBackupCodeDraws bounds redraws on collision; 32 bits of entropy make
	// even one redraw rare.
	maxBackupCodeDraws = 4
)

// GenerateBackupCodes creates count single-use recovery codes.
// Each code is 4 random bytes rendered as uppercase hex in XXXX-XXXX form.
// Codes are distinct within a batch.
func GenerateBackupCodes(count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidBackupCodeCount
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := drawDistinct(seen)
		if err != nil {
			return nil, err
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func drawDistinct(seen map[string]struct{}) (string, error) {
	buf := make([]byte, backupCodeBytes)
	for range maxBackupCodeDraws {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Join(ErrRandomSource, err)
		}
		code := formatBackupCode(buf)
		if _, dup := seen[code]; !dup {
			return code, nil
		}
	}
	return "", ErrBackupCodeSpace
}

func formatBackupCode(b []byte) string {
	h := strings.ToUpper(hex.EncodeToString(b))
	return h[:4] + "-" + h[4:]
}

// MatchBackupCode returns the index of candidate in codes, or -1.
// Every element is compared in constant time and the scan never exits early.
func MatchBackupCode(candidate string, codes []string) int {
	idx := -1
	c := []byte(candidate)
	for i, code := range codes {
		if subtle.ConstantTimeCompare(c, []byte(code)) == 1 && idx < 0 {
			idx = i
		}
	}
	return idx
}
