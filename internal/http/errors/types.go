// Package errors define el cuerpo de error que devuelve la API de auth.
package errors

import (
	"fmt"
	"net/http"
)

// AppError lleva el código estable que lee el frontend. Err queda en logs.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail y WithCause copian: los errores de abajo son compartidos.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func def(status int, code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: status}
}

// 4xx
var (
	ErrBadRequest      = def(http.StatusBadRequest, "BAD_REQUEST", "Solicitud inválida.")
	ErrInvalidJSON     = def(http.StatusBadRequest, "INVALID_JSON", "El cuerpo no es JSON válido.")
	ErrMissingFields   = def(http.StatusBadRequest, "MISSING_FIELDS", "Faltan campos obligatorios.")
	ErrPasswordTooWeak = def(http.StatusBadRequest, "PASSWORD_TOO_WEAK", "La contraseña no cumple la política.")

	// Un único mensaje para email desconocido, cuenta inactiva y contraseña errónea.
	ErrInvalidCredentials = def(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email o contraseña incorrectos.")
	ErrUnauthorized       = def(http.StatusUnauthorized, "UNAUTHORIZED", "Sesión inválida o expirada.")
	ErrForbidden          = def(http.StatusForbidden, "FORBIDDEN", "Tu rol no permite esta acción.")

	ErrNotFound          = def(http.StatusNotFound, "NOT_FOUND", "No encontrado.")
	ErrRouteNotFound     = def(http.StatusNotFound, "ROUTE_NOT_FOUND", "Ruta inexistente.")
	ErrMethodNotAllowed  = def(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método no soportado en esta ruta.")
	ErrEmailAlreadyInUse = def(http.StatusConflict, "EMAIL_ALREADY_IN_USE", "Ya existe una cuenta con ese email.")
	ErrBodyTooLarge      = def(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "El cuerpo supera el tamaño permitido.")
	ErrRateLimitExceeded = def(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Demasiadas solicitudes, probá más tarde.")
)

// 5xx
var (
	ErrInternalServerError = def(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Error interno.")
	ErrServiceUnavailable  = def(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Servicio no disponible por el momento.")
)
