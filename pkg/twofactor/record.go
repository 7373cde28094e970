package twofactor

import (
	"slices"
	"time"

	"github.com/campusmind/twofactor/pkg/totp"
)

// SecretRecord is the per-identity enrollment state.
type SecretRecord struct {
	Secret          []byte   `json:"secret"`
	Email           string   `json:"email"`
	Enabled         bool     `json:"enabled"`
	BackupCodes     []string `json:"backup_codes"`
	UsedBackupCodes []string `json:"used_backup_codes,omitempty"`

	// LastUsedStep is the newest TOTP step accepted for this record, 0 if none.
	LastUsedStep int64 `json:"last_used_step,omitempty"`

	// Version is maintained by stores and grows on every write.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	EnabledAt time.Time `json:"enabled_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (r *SecretRecord) Clone() *SecretRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Secret = slices.Clone(r.Secret)
	c.BackupCodes = slices.Clone(r.BackupCodes)
	c.UsedBackupCodes = slices.Clone(r.UsedBackupCodes)
	return &c
}

// ConsumeBackupCode marks code as used if it was issued and not yet used.
// The comparison is exact and constant time per stored code.
func (r *SecretRecord) ConsumeBackupCode(code string) bool {
	if !r.hasUnusedBackupCode(code) {
		return false
	}
	r.UsedBackupCodes = append(r.UsedBackupCodes, r.BackupCodes[totp.MatchBackupCode(code, r.BackupCodes)])
	return true
}

// RemainingBackupCodes is len(BackupCodes) - len(UsedBackupCodes).
func (r *SecretRecord) RemainingBackupCodes() int {
	return len(r.BackupCodes) - len(r.UsedBackupCodes)
}

func (r *SecretRecord) hasUnusedBackupCode(code string) bool {
	if totp.MatchBackupCode(code, r.BackupCodes) < 0 {
		return false
	}
	return totp.MatchBackupCode(code, r.UsedBackupCodes) < 0
}
