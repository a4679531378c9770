package repository

import (
	"context"
	"time"
)

// AuditEntry es un evento de autenticación. Append-only.
type AuditEntry struct {
	PrincipalID string // vacío si no se pudo resolver
	EventType   string
	Success     bool
	Reason      string
	Timestamp   time.Time
	IPAddress   string
	UserAgent   string
	Metadata    map[string]string
}

// AuditRepository agrega eventos al log de auditoría.
type AuditRepository interface {
	Append(ctx context.Context, e AuditEntry) error
}
