package middleware

import (
	"net/http"

	"hardwarelens-api/pkg/apierror"
)

// RequestOrigin is the origin the request was addressed to, honouring
// X-Forwarded-Proto from a terminating proxy.
func RequestOrigin(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	return proto + "://" + r.Host
}

// OriginAllowed reports whether origin may call the API. With no configured
// origins only the request's own origin is accepted.
func OriginAllowed(r *http.Request, origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return origin == RequestOrigin(r)
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Origin rejects browser requests from origins that are not allowed with 403.
// Requests without an Origin header pass through.
func Origin(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && !OriginAllowed(r, origin, allowed) {
				writeError(w, apierror.Forbidden("origin not allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
