package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// AbuseGuard blocks IPs that accumulate repeated authentication failures.
// State lives in Redis with explicit TTLs, so the failure window and block
// both expire on their own and the tracking stays bounded regardless of how
// many distinct IPs probe the service.
type AbuseGuard struct {
	rdb           *redis.Client
	log           *slog.Logger
	maxFailures   int
	blockDuration time.Duration
}

func NewAbuseGuard(rdb *redis.Client, log *slog.Logger, maxFailures int, blockDuration time.Duration) *AbuseGuard {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	if blockDuration <= 0 {
		blockDuration = time.Hour
	}
	return &AbuseGuard{
		rdb:           rdb,
		log:           log,
		maxFailures:   maxFailures,
		blockDuration: blockDuration,
	}
}

func (g *AbuseGuard) failureKey(ip string) string { return "abuse:failures:" + ip }
func (g *AbuseGuard) blockKey(ip string) string   { return "abuse:blocked:" + ip }

// IsBlocked reports whether the IP currently sits out a block window.
func (g *AbuseGuard) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := g.rdb.Exists(ctx, g.blockKey(ip)).Result()
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return n > 0, nil
}

// RecordFailure counts one auth failure and blocks the IP once the
// threshold is reached inside the rolling window.
func (g *AbuseGuard) RecordFailure(ctx context.Context, ip string) error {
	key := g.failureKey(ip)
	count, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("count failure: %w", err)
	}
	if count == 1 {
		if err := g.rdb.Expire(ctx, key, g.blockDuration).Err(); err != nil {
			return fmt.Errorf("expire failure window: %w", err)
		}
	}
	if count >= int64(g.maxFailures) {
		if err := g.rdb.Set(ctx, g.blockKey(ip), 1, g.blockDuration).Err(); err != nil {
			return fmt.Errorf("set block: %w", err)
		}
		g.log.Warn("ip blocked after repeated auth failures", "ip", ip, "failures", count)
	}
	return nil
}

// Middleware rejects blocked IPs up front and feeds 401 responses back into
// the failure counter. Redis trouble fails open: an unreachable cache must
// not take the API down.
func (g *AbuseGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		blocked, err := g.IsBlocked(r.Context(), ip)
		if err != nil && !errors.Is(err, redis.Nil) {
			g.log.Error("abuse guard check failed", "err", err)
		}
		if blocked {
			http.Error(w, "access temporarily blocked", http.StatusForbidden)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if ww.Status() == http.StatusUnauthorized {
			if err := g.RecordFailure(r.Context(), ip); err != nil {
				g.log.Error("abuse guard record failed", "err", err)
			}
		}
	})
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware has already rewritten RemoteAddr when the
	// request came through a proxy.
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
