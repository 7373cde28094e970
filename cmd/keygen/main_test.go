package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/secrets"
)

func TestRun(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, false))

	key, err := secrets.ParseKey(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = secrets.NewSealerFromString(strings.TrimSpace(out.String()))
	assert.NoError(t, err)
}

func TestRun_Env(t *testing.T) {
	var first, second bytes.Buffer
	require.NoError(t, run(&first, true))
	require.NoError(t, run(&second, true))

	assert.True(t, strings.HasPrefix(first.String(), "TWOFACTOR_ENCRYPTION_KEY="))
	assert.NotEqual(t, first.String(), second.String())
}
