package middleware

import (
	"crypto/subtle"
	"net/http"

	pkghttp "github.com/eventdeck/gatehouse/pkg/http"
)

// RequireOperator gates the operator console endpoints behind a shared
// secret header. Operator identity and role management live in the
// surrounding console; this service only checks that the caller came
// through it.
func RequireOperator(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				// No token configured (development): allow through.
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Operator-Token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				pkghttp.WriteForbidden(w, "Operator authorization required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
