package twofactor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/twofactor"
	"github.com/campusmind/twofactor/pkg/twofactor/storetest"
)

func TestSecretRecord_ConsumeBackupCode(t *testing.T) {
	t.Parallel()

	rec := storetest.Record()
	code := rec.BackupCodes[3]

	require.Equal(t, 8, rec.RemainingBackupCodes())
	assert.True(t, rec.ConsumeBackupCode(code))
	assert.Equal(t, 7, rec.RemainingBackupCodes())
	assert.False(t, rec.ConsumeBackupCode(code), "backup codes are single use")
	assert.Equal(t, 7, rec.RemainingBackupCodes())
	assert.Equal(t, []string{code}, rec.UsedBackupCodes)
}

func TestSecretRecord_ConsumeBackupCodeRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
	}{
		{name: "unknown", code: "FFFF-FFFF"},
		{name: "empty", code: ""},
		{name: "lower case", code: "a003-3000"},
		{name: "totp shaped", code: "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := storetest.Record()
			assert.False(t, rec.ConsumeBackupCode(tt.code))
			assert.Empty(t, rec.UsedBackupCodes)
		})
	}
}

func TestSecretRecord_Clone(t *testing.T) {
	t.Parallel()

	rec := storetest.Record()
	rec.UsedBackupCodes = []string{rec.BackupCodes[0]}

	c := rec.Clone()
	c.Secret[0] = 'X'
	c.BackupCodes[1] = "0000-0000"
	c.UsedBackupCodes[0] = "1111-1111"

	assert.Equal(t, byte('1'), rec.Secret[0])
	assert.NotEqual(t, "0000-0000", rec.BackupCodes[1])
	assert.Equal(t, rec.BackupCodes[0], rec.UsedBackupCodes[0])

	var nilRec *twofactor.SecretRecord
	assert.Nil(t, nilRec.Clone())
}

func TestStateOf(t *testing.T) {
	t.Parallel()

	pending := storetest.Record()
	enabled := storetest.Record()
	enabled.Enabled = true

	assert.Equal(t, twofactor.StateNotSetUp, twofactor.StateOf(nil))
	assert.Equal(t, twofactor.StatePending, twofactor.StateOf(pending))
	assert.Equal(t, twofactor.StateEnabled, twofactor.StateOf(enabled))
}
