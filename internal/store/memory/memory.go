// Package memory implementa los repositorios en memoria. Sirve para tests y
// para dev de un solo proceso cuando no hay DATABASE_URL; no es durable.
//
// Cada repositorio se sincroniza con un único mutex: todas las sesiones
// comparten la misma sección crítica. Alcanza para un proceso de dev con
// pocos usuarios; en producción las operaciones por sesión las serializa
// Postgres fila por fila (store/pg).
package memory

import (
	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// Store agrupa los repositorios en memoria.
type Store struct {
	Principals  *PrincipalRepo
	Sessions    *SessionRepo
	Revocations *RevocationRepo
	Audit       *AuditRepo
}

func New() *Store {
	return &Store{
		Principals:  NewPrincipalRepo(),
		Sessions:    NewSessionRepo(),
		Revocations: NewRevocationRepo(),
		Audit:       NewAuditRepo(),
	}
}

var (
	_ repository.PrincipalRepository  = (*PrincipalRepo)(nil)
	_ repository.SessionRepository    = (*SessionRepo)(nil)
	_ repository.RevocationRepository = (*RevocationRepo)(nil)
	_ repository.AuditRepository      = (*AuditRepo)(nil)
)
