// Package router arma el árbol de rutas chi de la API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/config"
	httpx "github.com/dropDatabas3/hablas/internal/http"
	adminctrl "github.com/dropDatabas3/hablas/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/hablas/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/hablas/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/hablas/internal/http/errors"
	"github.com/dropDatabas3/hablas/internal/http/helpers"
	mw "github.com/dropDatabas3/hablas/internal/http/middlewares"
	"github.com/dropDatabas3/hablas/internal/rate"
	"github.com/dropDatabas3/hablas/internal/rbac"
)

// Deps son las dependencias del router.
type Deps struct {
	Auth          *auth.Service
	Limiter       *rate.Limiter
	Logger        *zap.Logger
	SecureCookies bool
	Checks        []healthctrl.Check
	Metrics       http.Handler // nil = sin /metrics

	// TrustedProxies habilita X-Forwarded-For y compañía; vacío => RemoteAddr.
	TrustedProxies helpers.TrustedProxies
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	authC := authctrl.NewController(d.Auth, d.SecureCookies)
	adminC := adminctrl.NewController(d.Auth, d.Limiter)
	healthC := healthctrl.NewController(d.Limiter, d.Checks...)

	requireAuth := mw.RequireAuth(d.Auth)
	apiLimit := mw.WithRateLimit(d.Limiter, config.CategoryAPI, nil)

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustedProxies),
		mw.WithSecurityHeaders(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", healthC.Healthz)
	r.Get("/readyz", healthC.Readyz)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(
			mw.WithNoStore(),
			mw.WithLogging(d.Logger),
			httpx.WithMetrics,
		)

		r.Route("/auth", func(r chi.Router) {
			// login y reset aplican su propia categoría dentro del servicio
			r.Post("/login", authC.Login)
			r.Post("/password-reset/request", authC.RequestPasswordReset)
			r.Post("/password-reset/confirm", authC.ConfirmPasswordReset)
			r.With(apiLimit).Post("/refresh", authC.Refresh)
			r.With(apiLimit).Post("/logout", authC.Logout)

			// el límite va después de requireAuth para poder keyear por principal
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, apiLimit)
				r.Post("/logout-all", authC.LogoutAll)
				r.Get("/me", authC.Me)
				r.Get("/sessions", authC.Sessions)
				r.Post("/password", authC.ChangePassword)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, apiLimit)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(rbac.CanManageUsers))
				r.Post("/users", adminC.CreateUser)
				r.Patch("/users/{id}/role", adminC.SetRole)
				r.Post("/users/{id}/deactivate", adminC.Deactivate)
			})
			r.With(mw.RequireCapability(rbac.CanViewDashboard)).
				Get("/dashboard/limiter", adminC.LimiterDashboard)
		})
	})
	return r
}
