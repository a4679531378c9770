package middlewares

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// WithRequestID respeta el X-Request-ID del proxy si es razonable; si no,
// genera un UUID. El valor vuelve en la respuesta.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, st := ensureState(r.Context())
			st.requestID = strings.TrimSpace(r.Header.Get(requestIDHeader))
			if st.requestID == "" || len(st.requestID) > maxRequestIDLen {
				st.requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, st.requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
