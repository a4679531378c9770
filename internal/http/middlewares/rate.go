package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/http/errors"
	"github.com/dropDatabas3/hablas/internal/http/helpers"
	"github.com/dropDatabas3/hablas/internal/rate"
)

// RateKeyFunc deriva el identificador a limitar.
type RateKeyFunc func(r *http.Request) string

// IdentityOrIPKey usa el principal autenticado si lo hay, si no la IP.
func IdentityOrIPKey(r *http.Request) string {
	if id := GetIdentity(r.Context()); id != nil {
		return "user:" + id.PrincipalID
	}
	return helpers.ClientIP(r)
}

// WithRateLimit aplica la política de category. Sin limiter o sin política
// configurada es un no-op. Nunca falla por el backend: el limiter degrada a
// in-process por su cuenta.
func WithRateLimit(l *rate.Limiter, category string, key RateKeyFunc) Middleware {
	if key == nil {
		key = IdentityOrIPKey
	}
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		if _, ok := l.Policy(category); !ok {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.CheckCategory(r.Context(), key(r), category)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			helpers.SetRateLimitHeaders(w, res, time.Now())
			if !res.Allowed {
				errors.WriteError(w, &auth.RateLimitError{Category: category, Result: res})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
