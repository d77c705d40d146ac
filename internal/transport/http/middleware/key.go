package middleware

import (
	"crypto/subtle"
	"net/http"
)

// RequireKey rejects requests whose header does not carry key. An empty
// key disables the check.
func RequireKey(header, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid integration key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
