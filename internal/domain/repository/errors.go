package repository

import "errors"

// Errores que devuelven todos los backends. Los adaptadores envuelven el
// error del driver con %w para que errors.Is siga funcionando arriba.
var (
	ErrNotFound     = errors.New("repository: not found")
	ErrConflict     = errors.New("repository: conflict")
	ErrInvalidInput = errors.New("repository: invalid input")

	// ErrUnavailable es reintentable. Un lookup que falla así nunca cuenta
	// como "no existe": el registro de revocación cierra ante él.
	ErrUnavailable = errors.New("repository: store unavailable")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
