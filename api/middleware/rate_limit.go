package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/cakestore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cakestore-backend/pkg/redis"
)

// RateLimiter counts one request against a scope's fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
}

// RateLimitPolicy throttles one traffic surface. A zero limit or window disables it.
type RateLimitPolicy struct {
	Name   string
	Window time.Duration
	Limit  int
}

func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "api"
	}
	return RateLimitPolicy{Name: name, Window: window, Limit: limit}
}

func (p RateLimitPolicy) enabled() bool { return p.Window > 0 && p.Limit > 0 }

func (p RateLimitPolicy) scope(ip string) string { return p.Name + ":ip:" + ip }

// RateLimit refuses requests from a client IP past the policy's limit with 429 and a
// Retry-After matching the time left in the window. Limiter failures surface as 503.
func RateLimit(policy RateLimitPolicy, limiter RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			win, err := limiter.Allow(ctx, policy.scope(ip), int64(policy.Limit), policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if win.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"policy":   policy.Name,
					"ip":       ip,
					"attempts": win.Count,
					"limit":    policy.Limit,
					"reset_ms": win.ResetIn.Milliseconds(),
				}), "rate_limit.blocked")
			}
			resetIn := win.ResetIn
			if resetIn <= 0 {
				resetIn = policy.Window
			}
			responses.WriteError(ctx, nil, w,
				pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").WithRetryAfter(resetIn))
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
