// Package auth contiene los DTOs de /api/auth.
package auth

import (
	"time"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/rbac"
)

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	RememberMe   bool   `json:"rememberMe"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// User es la vista pública de un principal (sin hash).
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	RoleName  string     `json:"roleName"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// UserFrom arma la vista pública de un principal.
func UserFrom(p *repository.Principal) User {
	return User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role,
		RoleName:  rbac.RoleName(rbac.Role(p.Role)),
		IsActive:  p.IsActive,
		LastLogin: p.LastLogin,
		CreatedAt: p.CreatedAt,
	}
}

// TokenResponse es la respuesta de login y refresh.
type TokenResponse struct {
	User         User   `json:"user"`
	ExpiresAt    int64  `json:"expiresAt"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

type MeResponse struct {
	User             User                     `json:"user"`
	Capabilities     map[rbac.Capability]bool `json:"capabilities"`
	RefreshSuggested bool                     `json:"refreshSuggested"`
	ExpiresAt        int64                    `json:"expiresAt"`
}

type Session struct {
	ID         string    `json:"id"`
	DeviceType string    `json:"deviceType"`
	UserAgent  string    `json:"userAgent,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func SessionFrom(s repository.Session) Session {
	return Session{
		ID:         s.ID,
		DeviceType: s.Device.DeviceType,
		UserAgent:  s.Device.UserAgent,
		IPAddress:  s.Device.IPAddress,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

type SessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
