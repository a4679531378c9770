package middlewares

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/http/errors"
	"github.com/dropDatabas3/hablas/internal/http/helpers"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rbac"
)

// Authenticator verifica un access token completo (firma, exp, revocación).
type Authenticator interface {
	Authenticate(ctx context.Context, token string, o auth.Origin) (*auth.Identity, error)
}

// RequireAuth exige un access token válido (cookie o Bearer). Deja la
// identidad en el contexto y avisa con X-Token-Refresh-Suggested cuando
// conviene refrescar.
func RequireAuth(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := helpers.AccessToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("token missing"))
				return
			}
			id, err := a.Authenticate(r.Context(), token, helpers.Origin(r))
			if err != nil {
				logger.From(r.Context()).Debug("authentication rejected",
					logger.Reason(jwt.Reason(err)), logger.Err(err))
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				errors.WriteError(w, err)
				return
			}
			if id.RefreshSuggested {
				w.Header().Set("X-Token-Refresh-Suggested", "true")
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole exige un rol mínimo (admin > editor > viewer).
func RequireRole(min rbac.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(GetIdentity(r.Context()), min); err != nil {
				errors.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability exige una capability de la matriz de permisos.
func RequireCapability(c rbac.Capability) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.Authorize(GetIdentity(r.Context()), c); err != nil {
				errors.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
