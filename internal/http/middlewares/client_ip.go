package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/hablas/internal/http/helpers"
)

// WithClientIP resuelve la IP real una vez por request. Los headers de
// forwarding solo cuentan si el peer está en trusted.
func WithClientIP(trusted helpers.TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, helpers.WithClientIP(r, trusted.Resolve(r)))
		})
	}
}
