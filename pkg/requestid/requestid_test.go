package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThorWarnken/heimdall-server/pkg/requestid"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates an id when none supplied", func(t *testing.T) {
		t.Parallel()

		var captured string
		handler := requestid.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			captured = requestid.FromContext(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, captured)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err)
		assert.Equal(t, captured, rec.Header().Get(requestid.Header))
	})

	t.Run("reuses a valid client id", func(t *testing.T) {
		t.Parallel()

		var captured string
		handler := requestid.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			captured = requestid.FromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestid.Header, "client-supplied-42")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "client-supplied-42", captured)
	})

	t.Run("replaces malformed ids", func(t *testing.T) {
		t.Parallel()

		for _, bad := range []string{"has spaces", "semi;colon", strings.Repeat("x", 200)} {
			var captured string
			handler := requestid.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				captured = requestid.FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(requestid.Header, bad)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.NotEqual(t, bad, captured)
			assert.NotEmpty(t, captured)
		}
	})
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))

	ctx := requestid.WithContext(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", requestid.FromContext(ctx))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extractor := requestid.LoggerExtractor()

	attr, ok := extractor(requestid.WithContext(context.Background(), "abc-123"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc-123", attr.Value.String())

	_, ok = extractor(context.Background())
	assert.False(t, ok)
}
