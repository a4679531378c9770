package repository

import (
	"context"
	"time"
)

// RevocationEntry bloquea un token (por hash) hasta su expiración natural.
type RevocationEntry struct {
	TokenHash string
	RevokedAt time.Time
	ExpiresAt time.Time
}

// RevocationRepository persiste entradas de revocación.
type RevocationRepository interface {
	// Insert agrega la entrada. Insertar un hash existente no es error.
	Insert(ctx context.Context, e RevocationEntry) error

	// Claim inserta la entrada solo si no hay otra vigente para el hash.
	// inserted=false => el hash ya estaba reclamado. Es atómico.
	Claim(ctx context.Context, e RevocationEntry) (inserted bool, err error)

	// Exists indica si hay una entrada vigente (expires_at > now) para el hash.
	Exists(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// Purge borra entradas cuyo expires_at ya pasó. Retorna cuántas borró.
	Purge(ctx context.Context, now time.Time) (int, error)
}
