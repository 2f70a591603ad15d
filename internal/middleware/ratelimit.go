package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"hardwarelens-api/internal/ratelimit"
	"hardwarelens-api/pkg/apierror"
)

// Checker returns ratelimit.ErrLimited when identity has exhausted its
// budget, or another error when the limit cannot be evaluated.
type Checker interface {
	Check(ctx context.Context, identity string) error
}

// ClientIdentity returns the caller identity used for rate limiting: the
// first X-Forwarded-For entry, else X-Real-IP, else "unknown".
func ClientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return "unknown"
}

// RateLimit rejects callers over their budget with 429. When the limiter
// cannot reach its store the request is refused with 503.
func RateLimit(limiter Checker, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ClientIdentity(r)

			err := limiter.Check(r.Context(), identity)
			switch {
			case errors.Is(err, ratelimit.ErrLimited):
				logger.Debug("rate limited", zap.String("client", identity))
				writeError(w, apierror.TooManyRequests(""))
				return
			case err != nil:
				logger.Error("rate limiter unavailable",
					zap.String("client", identity),
					zap.Error(err),
				)
				writeError(w, apierror.ServiceUnavailable("rate limiter unavailable"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
