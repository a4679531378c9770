package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/rate"
)

// Errores visibles hacia afuera. El motivo interno de cada rechazo va solo a
// logs y auditoría.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrRateLimited        = errors.New("too many requests, try again later")
	ErrForbidden          = errors.New("forbidden")
	ErrUnavailable        = errors.New("service temporarily unavailable")
	ErrWeakPassword       = errors.New("password does not meet the policy")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
)

// RateLimitError lleva el resultado del limiter (resetAt, remaining).
type RateLimitError struct {
	Category string
	Result   rate.Result
}

func (e *RateLimitError) Error() string {
	if e.Result.Error != "" {
		return e.Result.Error
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// PolicyError lista los motivos por los que un password no cumple la política.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Reasons, ", ")
}

func (e *PolicyError) Is(target error) bool { return target == ErrWeakPassword }

// unavailable envuelve una falla de infraestructura como ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("auth: %s: %w: %v", op, ErrUnavailable, err)
}

// storeErr traduce errores de repositorio para operaciones de administración.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("auth: %s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("auth: %s: %w", op, ErrEmailTaken)
	case errors.Is(err, repository.ErrInvalidInput):
		return fmt.Errorf("auth: %s: %w", op, ErrInvalidInput)
	default:
		return unavailable(op, err)
	}
}
