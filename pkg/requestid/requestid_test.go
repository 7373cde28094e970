package requestid_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/logger"
	"github.com/campusmind/twofactor/pkg/requestid"
)

func serve(t *testing.T, header string) (ctxID string, rec *httptest.ResponseRecorder) {
	t.Helper()
	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/2fa/verify", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ctxID, rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("issues id when missing", func(t *testing.T) {
		t.Parallel()
		id, rec := serve(t, "")
		require.NotEmpty(t, id)
		assert.Equal(t, id, rec.Header().Get(requestid.Header))

		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
	})

	t.Run("keeps gateway id", func(t *testing.T) {
		t.Parallel()
		id, rec := serve(t, "gw_01HZX-42")
		assert.Equal(t, "gw_01HZX-42", id)
		assert.Equal(t, "gw_01HZX-42", rec.Header().Get(requestid.Header))
	})

	t.Run("replaces malformed ids", func(t *testing.T) {
		t.Parallel()
		for _, bad := range []string{
			"has space",
			"semi;colon",
			"new\nline",
			"<script>",
			strings.Repeat("a", 129),
		} {
			id, _ := serve(t, bad)
			assert.NotEqual(t, bad, id)
			_, err := uuid.Parse(id)
			assert.NoError(t, err, "input %q", bad)
		}
	})

	t.Run("max length accepted", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("a", 128)
		id, _ := serve(t, long)
		assert.Equal(t, long, id)
	})
}

func TestFromContext(t *testing.T) {
	t.Parallel()
	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Equal(t, "abc", requestid.FromContext(requestid.WithContext(context.Background(), "abc")))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithContextExtractors(requestid.LoggerExtractor()))

	log.InfoContext(requestid.WithContext(context.Background(), "req-1"), "with id")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])

	buf.Reset()
	log.InfoContext(context.Background(), "without id")
	entry = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "request_id")
}
