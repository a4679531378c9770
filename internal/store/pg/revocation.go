package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// RevocationRepo implementa repository.RevocationRepository sobre revoked_tokens.
type RevocationRepo struct {
	pool *pgxpool.Pool
}

// Insert es idempotente; si el hash ya existe se queda con la expiración mayor.
func (r *RevocationRepo) Insert(ctx context.Context, e repository.RevocationEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (token_hash, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE
		SET expires_at = GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)`,
		e.TokenHash, e.RevokedAt, e.ExpiresAt)
	return mapErr("insert revocation", err)
}

// Claim gana solo si no hay fila vigente: una fila vencida se pisa, una
// vigente deja el RETURNING vacío.
func (r *RevocationRepo) Claim(ctx context.Context, e repository.RevocationEntry) (bool, error) {
	var h string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO revoked_tokens (token_hash, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE
		SET revoked_at = EXCLUDED.revoked_at, expires_at = EXCLUDED.expires_at
		WHERE revoked_tokens.expires_at <= EXCLUDED.revoked_at
		RETURNING token_hash`,
		e.TokenHash, e.RevokedAt, e.ExpiresAt).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr("claim revocation", err)
	}
	return true, nil
}

func (r *RevocationRepo) Exists(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1 AND expires_at > $2)`,
		tokenHash, now).Scan(&ok)
	if err != nil {
		return false, mapErr("lookup revocation", err)
	}
	return ok, nil
}

func (r *RevocationRepo) Purge(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, mapErr("purge revocations", err)
	}
	return int(tag.RowsAffected()), nil
}
