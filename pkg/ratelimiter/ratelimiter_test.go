package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThorWarnken/heimdall-server/pkg/ratelimiter"
)

func newBucket(t *testing.T, capacity int) *ratelimiter.Bucket {
	t.Helper()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       capacity,
		RefillRate:     capacity,
		RefillInterval: time.Hour,
	})
	require.NoError(t, err)
	return bucket
}

func TestBucketAllow(t *testing.T) {
	t.Parallel()

	t.Run("denies after capacity is spent", func(t *testing.T) {
		t.Parallel()

		bucket := newBucket(t, 3)
		ctx := context.Background()

		for range 3 {
			result, err := bucket.Allow(ctx, "key")
			require.NoError(t, err)
			assert.True(t, result.Allowed())
		}

		result, err := bucket.Allow(ctx, "key")
		require.NoError(t, err)
		assert.False(t, result.Allowed())
		assert.Positive(t, result.RetryAfter())
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()

		bucket := newBucket(t, 1)
		ctx := context.Background()

		first, err := bucket.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, first.Allowed())

		denied, err := bucket.Allow(ctx, "a")
		require.NoError(t, err)
		assert.False(t, denied.Allowed())

		other, err := bucket.Allow(ctx, "b")
		require.NoError(t, err)
		assert.True(t, other.Allowed())
	})

	t.Run("reset restores the budget", func(t *testing.T) {
		t.Parallel()

		bucket := newBucket(t, 1)
		ctx := context.Background()

		_, err := bucket.Allow(ctx, "key")
		require.NoError(t, err)
		require.NoError(t, bucket.Reset(ctx, "key"))

		result, err := bucket.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, result.Allowed())
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		t.Cleanup(store.Close)

		_, err := ratelimiter.NewBucket(store, ratelimiter.Config{})
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("limits by client ip", func(t *testing.T) {
		t.Parallel()

		handler := ratelimiter.Middleware(newBucket(t, 2), ratelimiter.ByClientIP())(okHandler)

		send := func(remote string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/redeem-code", nil)
			req.RemoteAddr = remote
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		assert.Equal(t, http.StatusOK, send("10.0.0.1:1234").Code)
		assert.Equal(t, http.StatusOK, send("10.0.0.1:1234").Code)

		denied := send("10.0.0.1:1234")
		assert.Equal(t, http.StatusTooManyRequests, denied.Code)
		assert.JSONEq(t, `{"error":"Too many requests"}`, denied.Body.String())
		assert.Equal(t, "2", denied.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))

		// A different client keeps its own budget.
		assert.Equal(t, http.StatusOK, send("10.0.0.2:1234").Code)
	})

	t.Run("prefers x-forwarded-for", func(t *testing.T) {
		t.Parallel()

		keyFunc := ratelimiter.ByClientIP()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

		assert.Equal(t, "203.0.113.7", keyFunc(req))
	})
}

func TestComposite(t *testing.T) {
	t.Parallel()

	byPath := func(r *http.Request) string { return r.URL.Path }
	keyFunc := ratelimiter.Composite(ratelimiter.ByClientIP(), byPath)

	req := httptest.NewRequest(http.MethodGet, "/redeem-code", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:/redeem-code", keyFunc(req))
}
