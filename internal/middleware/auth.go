package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"hardwarelens-api/pkg/apierror"
)

// APIKey returns a middleware that admits requests carrying one of keys in
// X-API-Key or an Authorization bearer header.
func APIKey(keys []string) func(http.Handler) http.Handler {
	valid := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			valid = append(valid, k)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				writeError(w, apierror.Forbidden("API key required"))
				return
			}
			if !isValidKey(apiKey, valid) {
				writeError(w, apierror.Forbidden("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
