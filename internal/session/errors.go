package session

import (
	"errors"
)

// ErrInvalidRefresh es el único rechazo visible de una rotación.
var ErrInvalidRefresh = errors.New("invalid refresh token")

// Motivos internos de rechazo (logs y auditoría).
const (
	ReasonEmpty         = "empty"
	ReasonReplayed      = "replayed"
	ReasonNotActive     = "not_found_or_inactive"
	ReasonPrincipalGone = "principal_inactive"
)

// RefreshError lleva el motivo interno; errors.Is(err, ErrInvalidRefresh) es true.
type RefreshError struct {
	Reason    string
	SessionID string
}

func (e *RefreshError) Error() string { return ErrInvalidRefresh.Error() + ": " + e.Reason }

func (e *RefreshError) Is(target error) bool { return target == ErrInvalidRefresh }

// Reason extrae el motivo interno de un rechazo ("" si no es un RefreshError).
func Reason(err error) string {
	var re *RefreshError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

func invalid(reason, sessionID string) error {
	return &RefreshError{Reason: reason, SessionID: sessionID}
}
