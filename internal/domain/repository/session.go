package repository

import (
	"context"
	"time"
)

// Device types detectados desde el User-Agent.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// DeviceInfo describe el cliente que abrió la sesión.
type DeviceInfo struct {
	UserAgent  string `json:"userAgent,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
	DeviceType string `json:"deviceType"`
}

// Session es el registro durable de un login.
// Solo se guarda el hash del refresh token.
type Session struct {
	ID               string
	PrincipalID      string
	RefreshTokenHash string `json:"-"`
	Device           DeviceInfo
	CreatedAt        time.Time
	ExpiresAt        time.Time
	LastUsedAt       time.Time
	RevokedAt        *time.Time
	RevokeReason     *string
}

// Session states.
const (
	SessionActive  = "active"
	SessionRevoked = "revoked"
	SessionExpired = "expired"
)

// Status calcula el estado de la sesión en el instante now.
// revoked y expired son terminales.
func (s *Session) Status(now time.Time) string {
	if s.RevokedAt != nil {
		return SessionRevoked
	}
	if !now.Before(s.ExpiresAt) {
		return SessionExpired
	}
	return SessionActive
}

// IsActive indica si la sesión no está revocada ni expirada.
func (s *Session) IsActive(now time.Time) bool {
	return s.Status(now) == SessionActive
}

// CreateSessionInput contiene los datos para crear una nueva sesión.
type CreateSessionInput struct {
	PrincipalID      string
	RefreshTokenHash string
	Device           DeviceInfo
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// SessionRepository define operaciones para gestionar sesiones.
type SessionRepository interface {
	// Create crea una nueva sesión.
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	// GetByID obtiene una sesión por ID.
	GetByID(ctx context.Context, id string) (*Session, error)

	// GetByRefreshHash obtiene la sesión dueña del hash (activa o no).
	GetByRefreshHash(ctx context.Context, hash string) (*Session, error)

	// RotateRefreshHash reemplaza oldHash por newHash de forma atómica, solo si
	// existe una sesión activa con oldHash en el instante now. Si no existe
	// (o perdió la carrera contra otra rotación) devuelve ErrNotFound.
	RotateRefreshHash(ctx context.Context, oldHash, newHash string, now time.Time) (*Session, error)

	// Touch actualiza last_used_at sin tocar expires_at.
	Touch(ctx context.Context, id string, at time.Time) error

	// Revoke marca la sesión como revocada. Devuelve false si ya lo estaba.
	Revoke(ctx context.Context, id, reason string, at time.Time) (bool, error)

	// RevokeAllByPrincipal revoca todas las sesiones activas de un principal.
	// Retorna el número de sesiones revocadas.
	RevokeAllByPrincipal(ctx context.Context, principalID, reason string, at time.Time) (int, error)

	// ListActiveByPrincipal retorna sesiones activas, más recientes primero.
	ListActiveByPrincipal(ctx context.Context, principalID string, now time.Time) ([]Session, error)

	// DeleteExpired borra sesiones expiradas o revocadas antes de before.
	// Retorna el número de sesiones eliminadas.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
