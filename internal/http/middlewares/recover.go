package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/hablas/internal/http/errors"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// WithRecover convierte un panic del handler en 500. http.ErrAbortHandler
// se vuelve a lanzar para que net/http corte la conexión.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				switch v {
				case nil:
					return
				case http.ErrAbortHandler:
					panic(v)
				}
				logger.From(r.Context()).Error("handler panic",
					logger.String("request_id", GetRequestID(r.Context())),
					logger.Any("panic", v),
				)
				errors.WriteError(w, errors.ErrInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
