package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestIdentity(t *testing.T) {
	attr := logger.Identity("u1")
	require.Equal(t, "identity", attr.Key)
	assert.Equal(t, "u1", attr.Value.String())

	assert.True(t, logger.Identity("").Equal(slog.Attr{}))
}

func TestRequestID(t *testing.T) {
	attr := logger.RequestID("abc")
	require.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.Any())

	assert.True(t, logger.RequestID(nil).Equal(slog.Attr{}))
}

func TestStringAttrs(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		key  string
		val  string
	}{
		{logger.Operation("verify"), "operation", "verify"},
		{logger.Outcome("rejected"), "outcome", "rejected"},
		{logger.Store("redis"), "store", "redis"},
		{logger.Component("twofactor"), "component", "twofactor"},
		{logger.Handler("status"), "handler", "status"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.key, tt.attr.Key)
		assert.Equal(t, tt.val, tt.attr.Value.String())
	}
}

func TestClientIP(t *testing.T) {
	attr := logger.ClientIP("192.0.2.1")
	require.Equal(t, "client_ip", attr.Key)
	assert.Equal(t, "192.0.2.1", attr.Value.String())

	assert.True(t, logger.ClientIP("").Equal(slog.Attr{}))
}
