package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
)

// APIKeyMiddleware guards the write surface. Callers present the shared key
// in X-API-Key; reads stay open. An empty LEADR_API_KEY disables the check
// (local development).
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := os.Getenv("LEADR_API_KEY")
		if expected == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
