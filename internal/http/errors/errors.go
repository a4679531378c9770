package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hablas/internal/auth"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	ResetAt int64  `json:"resetAt,omitempty"`
}

// FromError traduce errores del core de auth a AppError. Lo desconocido es 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var pe *auth.PolicyError
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		return ErrInvalidCredentials.WithCause(err)
	case stderrors.Is(err, auth.ErrUnavailable):
		return ErrServiceUnavailable.WithCause(err)
	case stderrors.Is(err, auth.ErrUnauthenticated):
		return ErrUnauthorized.WithCause(err)
	case stderrors.Is(err, auth.ErrForbidden):
		return ErrForbidden.WithCause(err)
	case stderrors.Is(err, auth.ErrRateLimited):
		return ErrRateLimitExceeded.WithCause(err)
	case stderrors.As(err, &pe):
		return ErrPasswordTooWeak.WithDetail(strings.Join(pe.Reasons, ",")).WithCause(err)
	case stderrors.Is(err, auth.ErrEmailTaken):
		return ErrEmailAlreadyInUse.WithCause(err)
	case stderrors.Is(err, auth.ErrInvalidInput):
		return ErrBadRequest.WithCause(err)
	case stderrors.Is(err, auth.ErrNotFound):
		return ErrNotFound.WithCause(err)
	default:
		return ErrInternalServerError.WithCause(err)
	}
}

// WriteError escribe el error como JSON. Un *auth.RateLimitError agrega
// el mensaje de la política y resetAt al cuerpo.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	resp := errorResponse{Code: appErr.Code, Message: appErr.Message, Detail: appErr.Detail}

	var rl *auth.RateLimitError
	if stderrors.As(err, &rl) {
		if rl.Result.Error != "" {
			resp.Message = rl.Result.Error
		}
		resp.ResetAt = rl.Result.ResetAt
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
