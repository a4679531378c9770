// Package auth contiene los controllers de /api/auth.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	dto "github.com/dropDatabas3/hablas/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hablas/internal/http/errors"
	"github.com/dropDatabas3/hablas/internal/http/helpers"
	mw "github.com/dropDatabas3/hablas/internal/http/middlewares"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rbac"
)

// Service es lo que los controllers necesitan del core de auth.
type Service interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, extended bool, o auth.Origin) (*auth.RefreshResult, error)
	Logout(ctx context.Context, accessToken, refreshToken string, o auth.Origin) error
	LogoutAll(ctx context.Context, id *auth.Identity, o auth.Origin) (int, error)
	Me(ctx context.Context, id *auth.Identity) (*repository.Principal, error)
	ListSessions(ctx context.Context, id *auth.Identity) ([]repository.Session, error)
	ChangePassword(ctx context.Context, id *auth.Identity, current, next string, o auth.Origin) error
	RequestPasswordReset(ctx context.Context, email string, o auth.Origin) error
	ConfirmPasswordReset(ctx context.Context, token, next string, o auth.Origin) error
}

// Controller maneja las rutas de /api/auth.
type Controller struct {
	svc           Service
	secureCookies bool
}

// NewController crea el controller. secureCookies marca la cookie Secure (prod).
func NewController(svc Service, secureCookies bool) *Controller {
	return &Controller{svc: svc, secureCookies: secureCookies}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	helpers.SetRateLimitHeadersFromError(w, err)
	appErr := httperrors.FromError(err)
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op(op))
	if appErr.HTTPStatus >= 500 {
		log.Error("request failed", logger.Err(err))
	} else {
		log.Debug("request rejected", logger.Err(err))
	}
	httperrors.WriteError(w, err)
}

// Login maneja POST /api/auth/login.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	res, err := c.svc.Login(r.Context(), auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Origin:     helpers.Origin(r),
	})
	if err != nil {
		writeError(w, r, "AuthController.Login", err)
		return
	}

	helpers.SetRateLimitHeaders(w, res.RateLimit, time.Now())
	helpers.SetAuthCookie(w, res.AccessToken, res.TokenTTL, c.secureCookies)
	helpers.WriteJSON(w, http.StatusOK, dto.TokenResponse{
		User:         dto.UserFrom(res.Principal),
		ExpiresAt:    res.Claims.ExpiresAtTime().Unix(),
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
	})
}

// Refresh maneja POST /api/auth/refresh.
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if req.RefreshToken == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("refreshToken"))
		return
	}
	res, err := c.svc.Refresh(r.Context(), req.RefreshToken, req.RememberMe, helpers.Origin(r))
	if err != nil {
		writeError(w, r, "AuthController.Refresh", err)
		return
	}
	helpers.SetAuthCookie(w, res.AccessToken, res.TokenTTL, c.secureCookies)
	helpers.WriteJSON(w, http.StatusOK, dto.TokenResponse{
		User:         dto.UserFrom(res.Principal),
		ExpiresAt:    res.Claims.ExpiresAtTime().Unix(),
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
	})
}

// Logout maneja POST /api/auth/logout. El body es opcional.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if r.ContentLength != 0 {
		if err := helpers.ReadJSON(w, r, &req); err != nil {
			httperrors.WriteError(w, err)
			return
		}
	}
	if err := c.svc.Logout(r.Context(), helpers.AccessToken(r), req.RefreshToken, helpers.Origin(r)); err != nil {
		writeError(w, r, "AuthController.Logout", err)
		return
	}
	helpers.ClearAuthCookie(w, c.secureCookies)
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Success: true})
}

// LogoutAll maneja POST /api/auth/logout-all.
func (c *Controller) LogoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := c.svc.LogoutAll(r.Context(), mw.GetIdentity(r.Context()), helpers.Origin(r))
	if err != nil {
		writeError(w, r, "AuthController.LogoutAll", err)
		return
	}
	helpers.ClearAuthCookie(w, c.secureCookies)
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "revoked": n})
}

// Me maneja GET /api/auth/me.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	id := mw.GetIdentity(r.Context())
	p, err := c.svc.Me(r.Context(), id)
	if err != nil {
		writeError(w, r, "AuthController.Me", err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{
		User:             dto.UserFrom(p),
		Capabilities:     rbac.Capabilities(id.Role),
		RefreshSuggested: id.RefreshSuggested,
		ExpiresAt:        id.Claims.ExpiresAtTime().Unix(),
	})
}

// Sessions maneja GET /api/auth/sessions.
func (c *Controller) Sessions(w http.ResponseWriter, r *http.Request) {
	list, err := c.svc.ListSessions(r.Context(), mw.GetIdentity(r.Context()))
	if err != nil {
		writeError(w, r, "AuthController.Sessions", err)
		return
	}
	out := dto.SessionsResponse{Sessions: make([]dto.Session, 0, len(list))}
	for _, s := range list {
		out.Sessions = append(out.Sessions, dto.SessionFrom(s))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// ChangePassword maneja POST /api/auth/password. Cierra todas las sesiones.
func (c *Controller) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("currentPassword, newPassword"))
		return
	}
	err := c.svc.ChangePassword(r.Context(), mw.GetIdentity(r.Context()), req.CurrentPassword, req.NewPassword, helpers.Origin(r))
	if err != nil {
		writeError(w, r, "AuthController.ChangePassword", err)
		return
	}
	helpers.ClearAuthCookie(w, c.secureCookies)
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Success: true})
}

const resetRequestedMessage = "Si el email está registrado, recibirás un enlace para restablecer la contraseña."

// RequestPasswordReset maneja POST /api/auth/password-reset/request. La
// respuesta no depende de que el email exista.
func (c *Controller) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := c.svc.RequestPasswordReset(r.Context(), req.Email, helpers.Origin(r)); err != nil {
		writeError(w, r, "AuthController.RequestPasswordReset", err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: resetRequestedMessage})
}

// ConfirmPasswordReset maneja POST /api/auth/password-reset/confirm.
func (c *Controller) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetConfirm
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("token, newPassword"))
		return
	}
	if err := c.svc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword, helpers.Origin(r)); err != nil {
		writeError(w, r, "AuthController.ConfirmPasswordReset", err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Success: true})
}
