package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// AuditRepo acumula eventos; Entries devuelve una copia.
type AuditRepo struct {
	mu      sync.Mutex
	entries []repository.AuditEntry
}

func NewAuditRepo() *AuditRepo { return &AuditRepo{} }

func (r *AuditRepo) Append(_ context.Context, e repository.AuditEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return nil
}

func (r *AuditRepo) Entries() []repository.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
