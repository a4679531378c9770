package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

type RevocationRepo struct {
	mu      sync.RWMutex
	entries map[string]repository.RevocationEntry
}

func NewRevocationRepo() *RevocationRepo {
	return &RevocationRepo{entries: make(map[string]repository.RevocationEntry)}
}

func (r *RevocationRepo) Insert(_ context.Context, e repository.RevocationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[e.TokenHash]; ok && cur.ExpiresAt.After(e.ExpiresAt) {
		return nil
	}
	r.entries[e.TokenHash] = e
	return nil
}

func (r *RevocationRepo) Claim(_ context.Context, e repository.RevocationEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[e.TokenHash]; ok && cur.ExpiresAt.After(e.RevokedAt) {
		return false, nil
	}
	r.entries[e.TokenHash] = e
	return true, nil
}

func (r *RevocationRepo) Exists(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[tokenHash]
	return ok && e.ExpiresAt.After(now), nil
}

func (r *RevocationRepo) Purge(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for h, e := range r.entries {
		if !e.ExpiresAt.After(now) {
			delete(r.entries, h)
			n++
		}
	}
	return n, nil
}

// Len devuelve la cantidad de entradas (vigentes o no).
func (r *RevocationRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
