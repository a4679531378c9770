package jwt

import "errors"

// ErrInvalidToken es el único resultado visible hacia afuera de una
// verificación fallida. Las causas de abajo solo sirven para logs y auditoría.
var ErrInvalidToken = errors.New("invalid token")

var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenClaims    = errors.New("token claims invalid")
	ErrTokenRevoked   = errors.New("token revoked")
)

var (
	ErrMissingSecret = errors.New("jwt: signing secret is required")
	ErrWeakSecret    = errors.New("jwt: signing secret is too short")
)

// VerifyError lleva la causa interna de un rechazo.
// errors.Is(err, ErrInvalidToken) es true para cualquier causa.
type VerifyError struct {
	Cause error
	Err   error
}

// NewVerifyError arma un VerifyError con causa y error subyacente opcional.
func NewVerifyError(cause, err error) *VerifyError {
	return &VerifyError{Cause: cause, Err: err}
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return ErrInvalidToken.Error() + ": " + e.Cause.Error() + ": " + e.Err.Error()
	}
	return ErrInvalidToken.Error() + ": " + e.Cause.Error()
}

func (e *VerifyError) Is(target error) bool {
	return target == ErrInvalidToken || target == e.Cause
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Reason devuelve un código corto para auditoría ("expired", "signature", ...).
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrTokenSignature):
		return "signature"
	case errors.Is(err, ErrTokenClaims):
		return "claims"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}
