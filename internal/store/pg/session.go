package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// SessionRepo implementa repository.SessionRepository.
type SessionRepo struct {
	pool *pgxpool.Pool
}

const sessionCols = `id, user_id, refresh_token_hash, user_agent, ip_address, device_type,
	created_at, expires_at, last_used_at, revoked_at, revoke_reason`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var ua, ip *string
	if err := row.Scan(&s.ID, &s.PrincipalID, &s.RefreshTokenHash, &ua, &ip, &s.Device.DeviceType,
		&s.CreatedAt, &s.ExpiresAt, &s.LastUsedAt, &s.RevokedAt, &s.RevokeReason); err != nil {
		return nil, err
	}
	s.Device.UserAgent = deref(ua)
	s.Device.IPAddress = deref(ip)
	return &s, nil
}

// Create inserta una nueva sesión.
func (r *SessionRepo) Create(ctx context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	if in.PrincipalID == "" || in.RefreshTokenHash == "" {
		return nil, repository.ErrInvalidInput
	}
	dt := in.Device.DeviceType
	if dt == "" {
		dt = repository.DeviceUnknown
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, refresh_token_hash, user_agent, ip_address, device_type,
			created_at, expires_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $6)
		RETURNING `+sessionCols,
		in.PrincipalID, in.RefreshTokenHash,
		nullIfEmpty(in.Device.UserAgent), nullIfEmpty(in.Device.IPAddress), dt,
		in.CreatedAt, in.ExpiresAt,
	)
	s, err := scanSession(row)
	if err != nil {
		return nil, mapErr("create session", err)
	}
	return s, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*repository.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get session", err)
	}
	return s, nil
}

func (r *SessionRepo) GetByRefreshHash(ctx context.Context, hash string) (*repository.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE refresh_token_hash = $1`, hash))
	if err != nil {
		return nil, mapErr("get session by refresh hash", err)
	}
	return s, nil
}

// RotateRefreshHash es un UPDATE condicional: con READ COMMITTED, dos
// rotaciones concurrentes del mismo hash se serializan sobre la fila y la
// segunda re-evalúa el WHERE contra el hash nuevo, así que no matchea.
func (r *SessionRepo) RotateRefreshHash(ctx context.Context, oldHash, newHash string, now time.Time) (*repository.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `
		UPDATE sessions
		SET refresh_token_hash = $2, last_used_at = $3
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > $3
		RETURNING `+sessionCols,
		oldHash, newHash, now,
	))
	if err != nil {
		return nil, mapErr("rotate refresh hash", err)
	}
	return s, nil
}

// Touch actualiza last_used_at; expires_at no cambia.
func (r *SessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return mapErr("touch session", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) Revoke(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = $2, revoke_reason = $3
		WHERE id = $1 AND revoked_at IS NULL`, id, at, reason)
	if err != nil {
		return false, mapErr("revoke session", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// distinguir "ya revocada" de "no existe"
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, mapErr("revoke session", err)
	}
	if !exists {
		return false, repository.ErrNotFound
	}
	return false, nil
}

func (r *SessionRepo) RevokeAllByPrincipal(ctx context.Context, principalID, reason string, at time.Time) (int, error) {
	if _, err := uuid.Parse(principalID); err != nil {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = $2, revoke_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2`, principalID, at, reason)
	if err != nil {
		return 0, mapErr("revoke all sessions", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *SessionRepo) ListActiveByPrincipal(ctx context.Context, principalID string, now time.Time) ([]repository.Session, error) {
	if _, err := uuid.Parse(principalID); err != nil {
		return []repository.Session{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionCols+` FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC`, principalID, now)
	if err != nil {
		return nil, mapErr("list sessions", err)
	}
	defer rows.Close()

	out := make([]repository.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, mapErr("scan session", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list sessions", err)
	}
	return out, nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)`, before)
	if err != nil {
		return 0, mapErr("delete expired sessions", err)
	}
	return int(tag.RowsAffected()), nil
}
