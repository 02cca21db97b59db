package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumierelabs/prewedding-api/pkg/logger"
)

func newGuardFixture(t *testing.T, maxFailures int) (*AbuseGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewAbuseGuard(rdb, logger.New(), maxFailures, time.Hour), mr
}

func TestAbuseGuard_BlocksAfterThreshold(t *testing.T) {
	guard, _ := newGuardFixture(t, 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, guard.RecordFailure(ctx, "10.0.0.1"))
		blocked, err := guard.IsBlocked(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, blocked, "below threshold must not block")
	}

	require.NoError(t, guard.RecordFailure(ctx, "10.0.0.1"))
	blocked, err := guard.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked)

	// Other IPs are unaffected.
	blocked, err = guard.IsBlocked(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestAbuseGuard_BlockExpires(t *testing.T) {
	guard, mr := newGuardFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, guard.RecordFailure(ctx, "10.0.0.1"))
	blocked, err := guard.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, blocked)

	mr.FastForward(time.Hour + time.Second)

	blocked, err = guard.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked, "block must expire with its TTL")
}

func TestAbuseGuard_MiddlewareCountsUnauthorized(t *testing.T) {
	guard, mr := newGuardFixture(t, 2)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	handler := guard.Middleware(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.5:51000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	require.True(t, mr.Exists("abuse:blocked:192.0.2.5"))

	// Third request is rejected before it reaches the handler.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.5:51001"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAbuseGuard_MiddlewareIgnoresSuccesses(t *testing.T) {
	guard, mr := newGuardFixture(t, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := guard.Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.RemoteAddr = "192.0.2.9:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mr.Exists("abuse:failures:192.0.2.9"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:61234"
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "[2001:db8::1]", clientIP(req))
}
