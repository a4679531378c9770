package pg

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// PrincipalRepo implementa repository.PrincipalRepository sobre la tabla users.
type PrincipalRepo struct {
	pool *pgxpool.Pool
}

const principalCols = `id, email, name, password_hash, role, is_active, last_login, tokens_valid_after, created_at, updated_at`

func scanPrincipal(row pgx.Row) (*repository.Principal, error) {
	var p repository.Principal
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Role,
		&p.IsActive, &p.LastLogin, &p.TokensValidAfter, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PrincipalRepo) Create(ctx context.Context, in repository.CreatePrincipalInput) (*repository.Principal, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, repository.ErrInvalidInput
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+principalCols,
		email, in.Name, in.PasswordHash, in.Role,
	)
	p, err := scanPrincipal(row)
	if err != nil {
		return nil, mapErr("create principal", err)
	}
	return p, nil
}

func (r *PrincipalRepo) GetByEmail(ctx context.Context, email string) (*repository.Principal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+principalCols+` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`,
		strings.TrimSpace(email))
	p, err := scanPrincipal(row)
	if err != nil {
		return nil, mapErr("get principal by email", err)
	}
	return p, nil
}

func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (*repository.Principal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+principalCols+` FROM users WHERE id = $1`, id)
	p, err := scanPrincipal(row)
	if err != nil {
		return nil, mapErr("get principal", err)
	}
	return p, nil
}

// exec corre un UPDATE de una fila; 0 filas afectadas => ErrNotFound.
func (r *PrincipalRepo) exec(ctx context.Context, op, q string, args ...any) error {
	if _, err := uuid.Parse(args[0].(string)); err != nil {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "update last login",
		`UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

func (r *PrincipalRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, "update password hash",
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *PrincipalRepo) SetRole(ctx context.Context, id, role string) error {
	return r.exec(ctx, "set role",
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

func (r *PrincipalRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, "set active",
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *PrincipalRepo) SetTokensValidAfter(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "set tokens valid after",
		`UPDATE users SET tokens_valid_after = $2 WHERE id = $1`, id, at)
}

func (r *PrincipalRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active`, role).Scan(&n)
	if err != nil {
		return 0, mapErr("count by role", err)
	}
	return n, nil
}
