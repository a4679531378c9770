// Package admin contiene los controllers de /api/admin.
package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	dto "github.com/dropDatabas3/hablas/internal/http/dto/admin"
	authdto "github.com/dropDatabas3/hablas/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hablas/internal/http/errors"
	"github.com/dropDatabas3/hablas/internal/http/helpers"
	mw "github.com/dropDatabas3/hablas/internal/http/middlewares"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rate"
)

type Service interface {
	CreatePrincipal(ctx context.Context, actor *auth.Identity, in auth.CreatePrincipalInput, o auth.Origin) (*repository.Principal, error)
	SetRole(ctx context.Context, actor *auth.Identity, principalID, role string, o auth.Origin) error
	Deactivate(ctx context.Context, actor *auth.Identity, principalID string, o auth.Origin) error
}

// Controller maneja la administración de usuarios y el dashboard del limiter.
type Controller struct {
	svc     Service
	limiter *rate.Limiter
}

func NewController(svc Service, limiter *rate.Limiter) *Controller {
	return &Controller{svc: svc, limiter: limiter}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httperrors.FromError(err).HTTPStatus >= 500 {
		logger.From(r.Context()).Error("admin request failed", logger.Op(op), logger.Err(err))
	}
	httperrors.WriteError(w, err)
}

// CreateUser maneja POST /api/admin/users.
func (c *Controller) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" || req.Role == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email, password, role"))
		return
	}
	p, err := c.svc.CreatePrincipal(r.Context(), mw.GetIdentity(r.Context()), auth.CreatePrincipalInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	}, helpers.Origin(r))
	if err != nil {
		writeError(w, r, "AdminController.CreateUser", err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, authdto.UserFrom(p))
}

// SetRole maneja PATCH /api/admin/users/{id}/role.
func (c *Controller) SetRole(w http.ResponseWriter, r *http.Request) {
	var req dto.SetRoleRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := c.svc.SetRole(r.Context(), mw.GetIdentity(r.Context()), id, req.Role, helpers.Origin(r)); err != nil {
		writeError(w, r, "AdminController.SetRole", err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.StatusResponse{Success: true})
}

// Deactivate maneja POST /api/admin/users/{id}/deactivate.
func (c *Controller) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.svc.Deactivate(r.Context(), mw.GetIdentity(r.Context()), id, helpers.Origin(r)); err != nil {
		writeError(w, r, "AdminController.Deactivate", err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.StatusResponse{Success: true})
}

// LimiterDashboard maneja GET /api/admin/dashboard/limiter.
func (c *Controller) LimiterDashboard(w http.ResponseWriter, r *http.Request) {
	st := c.limiter.Stats()
	out := dto.LimiterDashboard{
		Mode:        string(st.Mode),
		Distributed: st.Configured,
		TrackedKeys: st.TrackedKeys,
		MaxKeys:     st.MaxKeys,
		Fallbacks:   st.Fallbacks,
		Policies:    map[string]dto.Policy{},
	}
	for name, p := range c.limiter.Policies() {
		out.Policies[name] = dto.Policy{Max: p.Max, WindowSeconds: int64(p.Window.Seconds()), Message: p.Message}
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}
