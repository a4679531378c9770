package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

// SessionRepo guarda sesiones indexadas por id y por hash de refresh token.
// RotateRefreshHash es compare-and-swap bajo el lock: solo una rotación
// concurrente del mismo hash gana. El lock es del repositorio entero, no por
// sesión; ver el doc del paquete.
type SessionRepo struct {
	mu     sync.Mutex
	byID   map[string]*repository.Session
	byHash map[string]string // hash vigente -> id
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{
		byID:   make(map[string]*repository.Session),
		byHash: make(map[string]string),
	}
}

func clone(s *repository.Session) *repository.Session {
	cp := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		cp.RevokedAt = &t
	}
	if s.RevokeReason != nil {
		r := *s.RevokeReason
		cp.RevokeReason = &r
	}
	return &cp
}

func (r *SessionRepo) Create(_ context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	if in.PrincipalID == "" || in.RefreshTokenHash == "" {
		return nil, repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHash[in.RefreshTokenHash]; ok {
		return nil, repository.ErrConflict
	}
	s := &repository.Session{
		ID:               uuid.NewString(),
		PrincipalID:      in.PrincipalID,
		RefreshTokenHash: in.RefreshTokenHash,
		Device:           in.Device,
		CreatedAt:        in.CreatedAt,
		ExpiresAt:        in.ExpiresAt,
		LastUsedAt:       in.CreatedAt,
	}
	r.byID[s.ID] = s
	r.byHash[s.RefreshTokenHash] = s.ID
	return clone(s), nil
}

func (r *SessionRepo) GetByID(_ context.Context, id string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s), nil
}

func (r *SessionRepo) GetByRefreshHash(_ context.Context, hash string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *SessionRepo) RotateRefreshHash(_ context.Context, oldHash, newHash string, now time.Time) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[oldHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s := r.byID[id]
	if !s.IsActive(now) {
		return nil, repository.ErrNotFound
	}
	if _, taken := r.byHash[newHash]; taken {
		return nil, repository.ErrConflict
	}
	delete(r.byHash, oldHash)
	s.RefreshTokenHash = newHash
	s.LastUsedAt = now
	r.byHash[newHash] = id
	return clone(s), nil
}

func (r *SessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.LastUsedAt = at
	return nil
}

func (r *SessionRepo) Revoke(_ context.Context, id, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if s.RevokedAt != nil {
		return false, nil
	}
	revoke(s, reason, at)
	return true, nil
}

func revoke(s *repository.Session, reason string, at time.Time) {
	t, rs := at, reason
	s.RevokedAt = &t
	s.RevokeReason = &rs
}

func (r *SessionRepo) RevokeAllByPrincipal(_ context.Context, principalID, reason string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.byID {
		if s.PrincipalID == principalID && s.IsActive(at) {
			revoke(s, reason, at)
			n++
		}
	}
	return n, nil
}

func (r *SessionRepo) ListActiveByPrincipal(_ context.Context, principalID string, now time.Time) ([]repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.Session, 0)
	for _, s := range r.byID {
		if s.PrincipalID == principalID && s.IsActive(now) {
			out = append(out, *clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SessionRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.byID {
		expired := s.ExpiresAt.Before(before)
		revoked := s.RevokedAt != nil && s.RevokedAt.Before(before)
		if expired || revoked {
			delete(r.byID, id)
			delete(r.byHash, s.RefreshTokenHash)
			n++
		}
	}
	return n, nil
}
