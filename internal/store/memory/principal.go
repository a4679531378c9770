package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

type PrincipalRepo struct {
	mu      sync.RWMutex
	byID    map[string]*repository.Principal
	byEmail map[string]string // email normalizado -> id
}

func NewPrincipalRepo() *PrincipalRepo {
	return &PrincipalRepo{
		byID:    make(map[string]*repository.Principal),
		byEmail: make(map[string]string),
	}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (r *PrincipalRepo) Create(_ context.Context, in repository.CreatePrincipalInput) (*repository.Principal, error) {
	email := normEmail(in.Email)
	if email == "" {
		return nil, repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[email]; ok {
		return nil, repository.ErrConflict
	}
	now := time.Now().UTC()
	p := &repository.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[p.ID] = p
	r.byEmail[email] = p.ID
	cp := *p
	return &cp, nil
}

func (r *PrincipalRepo) GetByEmail(_ context.Context, email string) (*repository.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *PrincipalRepo) GetByID(_ context.Context, id string) (*repository.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PrincipalRepo) update(id string, fn func(p *repository.Principal)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(p)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *PrincipalRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(p *repository.Principal) {
		t := at
		p.LastLogin = &t
	})
}

func (r *PrincipalRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.update(id, func(p *repository.Principal) { p.PasswordHash = hash })
}

func (r *PrincipalRepo) SetRole(_ context.Context, id, role string) error {
	return r.update(id, func(p *repository.Principal) { p.Role = role })
}

func (r *PrincipalRepo) SetActive(_ context.Context, id string, active bool) error {
	return r.update(id, func(p *repository.Principal) { p.IsActive = active })
}

func (r *PrincipalRepo) SetTokensValidAfter(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(p *repository.Principal) {
		t := at
		p.TokensValidAfter = &t
	})
}

func (r *PrincipalRepo) CountByRole(_ context.Context, role string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.byID {
		if p.Role == role && p.IsActive {
			n++
		}
	}
	return n, nil
}
