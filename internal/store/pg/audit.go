package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// AuditRepo agrega filas a auth_audit_log. Nunca actualiza ni borra.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func (r *AuditRepo) Append(ctx context.Context, e repository.AuditEntry) error {
	var uid *string
	if _, err := uuid.Parse(e.PrincipalID); err == nil {
		uid = &e.PrincipalID
	}
	var meta any
	if len(e.Metadata) > 0 {
		meta = e.Metadata
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_audit_log (user_id, event_type, success, reason, ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uid, e.EventType, e.Success, nullIfEmpty(e.Reason),
		nullIfEmpty(e.IPAddress), nullIfEmpty(e.UserAgent), meta, e.Timestamp,
	)
	return mapErr("append audit", err)
}
