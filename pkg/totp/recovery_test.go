package totp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/totp"
)

func TestGenerateBackupCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		count   int
		wantErr error
	}{
		{name: "default count", count: totp.DefaultBackupCodeCount},
		{name: "single code", count: 1},
		{name: "large batch", count: 500},
		{name: "zero", count: 0, wantErr: totp.ErrInvalidBackupCodeCount},
		{name: "negative", count: -3, wantErr: totp.ErrInvalidBackupCodeCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			codes, err := totp.GenerateBackupCodes(tt.count)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, codes)
				return
			}
			require.NoError(t, err)
			require.Len(t, codes, tt.count)

			seen := make(map[string]bool, len(codes))
			for _, code := range codes {
				assert.Regexp(t, `^[0-9A-F]{4}-[0-9A-F]{4}$`, code)
				assert.False(t, seen[code], "duplicate code %s", code)
				seen[code] = true
			}
		})
	}
}

func TestMatchBackupCode(t *testing.T) {
	t.Parallel()

	codes := []string{"AAAA-1111", "BBBB-2222", "CCCC-3333"}

	tests := []struct {
		name      string
		candidate string
		want      int
	}{
		{name: "first", candidate: "AAAA-1111", want: 0},
		{name: "last", candidate: "CCCC-3333", want: 2},
		{name: "lower case is not normalized", candidate: "bbbb-2222", want: -1},
		{name: "missing dash", candidate: "BBBB2222", want: -1},
		{name: "unknown", candidate: "DDDD-4444", want: -1},
		{name: "empty", candidate: "", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, totp.MatchBackupCode(tt.candidate, codes))
		})
	}
}

func BenchmarkMatchBackupCode(b *testing.B) {
	codes, _ := totp.GenerateBackupCodes(totp.DefaultBackupCodeCount)
	candidate := codes[len(codes)-1]

	for b.Loop() {
		totp.MatchBackupCode(candidate, codes)
	}
}
