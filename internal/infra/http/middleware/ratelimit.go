package middleware

import (
	"net"
	"net/http"

	"github.com/shipstream/api/internal/ratelimit"
	"github.com/shipstream/api/pkg/apierror"
	"github.com/shipstream/api/pkg/logger"
)

// RateLimit limits requests per caller using the injected limiter.
// The caller is identified by remote IP (RealIP must run earlier in the
// chain for proxied deployments). Limiter failures fail open: a broken
// counter must not take the endpoint down.
func RateLimit(limiter ratelimit.Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable, allowing request",
					"caller", key,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				log.Warn("rate limit exceeded",
					"caller", key,
					"path", r.URL.Path,
				)
				apierror.RateLimitExceeded().WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// callerKey identifies the caller for rate limiting purposes.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
