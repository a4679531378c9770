package repository

import (
	"context"
	"time"
)

// Principal representa una cuenta capaz de autenticarse.
// PasswordHash nunca sale del trust boundary: no se serializa.
type Principal struct {
	ID           string
	Email        string // siempre en minúsculas
	Name         string
	PasswordHash string `json:"-"`
	Role         string
	IsActive     bool
	LastLogin    *time.Time
	// TokensValidAfter invalida los access tokens emitidos hasta ese segundo
	// inclusive. nil => sin corte.
	TokensValidAfter *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreatePrincipalInput contiene los datos para crear un principal.
type CreatePrincipalInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

// PrincipalRepository define el acceso al identity store.
type PrincipalRepository interface {
	// Create inserta un principal. Email duplicado (case-insensitive) => ErrConflict.
	Create(ctx context.Context, input CreatePrincipalInput) (*Principal, error)

	// GetByEmail busca por email sin distinguir mayúsculas.
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// GetByID busca por ID.
	GetByID(ctx context.Context, id string) (*Principal, error)

	// UpdateLastLogin registra el último login exitoso.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdatePasswordHash reemplaza el hash de password.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// SetRole cambia el rol del principal.
	SetRole(ctx context.Context, id, role string) error

	// SetActive activa o desactiva la cuenta.
	SetActive(ctx context.Context, id string, active bool) error

	// SetTokensValidAfter fija el corte de access tokens del principal.
	SetTokensValidAfter(ctx context.Context, id string, at time.Time) error

	// CountByRole cuenta principals activos con un rol (bootstrap de admin).
	CountByRole(ctx context.Context, role string) (int, error)
}
