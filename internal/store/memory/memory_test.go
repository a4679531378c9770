package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

func TestPrincipals_EmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	r := NewPrincipalRepo()

	p, err := r.Create(ctx, repository.CreatePrincipalInput{Email: " Ana@Example.COM ", Role: "editor", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.True(t, p.IsActive)

	_, err = r.Create(ctx, repository.CreatePrincipalInput{Email: "ANA@example.com"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := r.GetByEmail(ctx, "ana@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = r.GetByEmail(ctx, "nadie@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPrincipals_Mutations(t *testing.T) {
	ctx := context.Background()
	r := NewPrincipalRepo()
	p, err := r.Create(ctx, repository.CreatePrincipalInput{Email: "a@x.com", Role: "viewer"})
	require.NoError(t, err)

	at := time.Unix(1_700_000_000, 0)
	require.NoError(t, r.UpdateLastLogin(ctx, p.ID, at))
	require.NoError(t, r.UpdatePasswordHash(ctx, p.ID, "nuevo"))
	require.NoError(t, r.SetRole(ctx, p.ID, "admin"))
	require.NoError(t, r.SetTokensValidAfter(ctx, p.ID, at))

	n, err := r.CountByRole(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, r.SetActive(ctx, p.ID, false))
	n, _ = r.CountByRole(ctx, "admin")
	assert.Equal(t, 0, n)

	got, err := r.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "nuevo", got.PasswordHash)
	assert.Equal(t, "admin", got.Role)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(at))
	require.NotNil(t, got.TokensValidAfter)
	assert.True(t, got.TokensValidAfter.Equal(at))

	assert.ErrorIs(t, r.SetRole(ctx, "missing", "admin"), repository.ErrNotFound)
	assert.ErrorIs(t, r.SetTokensValidAfter(ctx, "missing", at), repository.ErrNotFound)
}

func newSession(t *testing.T, r *SessionRepo, pid, hash string, now time.Time) *repository.Session {
	t.Helper()
	s, err := r.Create(context.Background(), repository.CreateSessionInput{
		PrincipalID:      pid,
		RefreshTokenHash: hash,
		CreatedAt:        now,
		ExpiresAt:        now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return s
}

func TestSessions_RotateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	now := time.Unix(1_700_000_000, 0)
	s := newSession(t, r, "p1", "old", now)

	rotated, err := r.RotateRefreshHash(ctx, "old", "new", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, s.ID, rotated.ID)
	assert.Equal(t, "new", rotated.RefreshTokenHash)
	assert.Equal(t, s.ExpiresAt, rotated.ExpiresAt)

	_, err = r.RotateRefreshHash(ctx, "old", "other", now.Add(time.Minute))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = r.GetByRefreshHash(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessions_ConcurrentRotateSingleWinner(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	now := time.Unix(1_700_000_000, 0)
	s := newSession(t, r, "p1", "old", now)

	var wins atomic.Int32
	var winner atomic.Value
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := "new-" + string(rune('a'+i))
			if _, err := r.RotateRefreshHash(ctx, "old", h, now); err == nil {
				wins.Add(1)
				winner.Store(h)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	got, err := r.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, winner.Load(), got.RefreshTokenHash)
}

func TestSessions_IndependentRotationsUnderContention(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	now := time.Unix(1_700_000_000, 0)

	const n = 32
	ids := make([]string, n)
	for i := range ids {
		ids[i] = newSession(t, r, fmt.Sprintf("p%d", i%4), fmt.Sprintf("h%d-0", i), now).ID
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for gen := 0; gen < 20; gen++ {
				_, err := r.RotateRefreshHash(ctx, fmt.Sprintf("h%d-%d", i, gen), fmt.Sprintf("h%d-%d", i, gen+1), now)
				assert.NoError(t, err)
			}
		}()
	}
	// lecturas y revocaciones de otros principals en paralelo
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_, _ = r.ListActiveByPrincipal(ctx, "p0", now)
			_, _ = r.RevokeAllByPrincipal(ctx, "nobody", "test", now)
		}
	}()
	wg.Wait()

	for i, id := range ids {
		got, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("h%d-20", i), got.RefreshTokenHash)
	}
}

func TestSessions_RotateRejectsRevokedAndExpired(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	now := time.Unix(1_700_000_000, 0)

	revoked := newSession(t, r, "p1", "h-revoked", now)
	ok, err := r.Revoke(ctx, revoked.ID, "logout", now)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.RotateRefreshHash(ctx, "h-revoked", "x", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	newSession(t, r, "p1", "h-expired", now)
	_, err = r.RotateRefreshHash(ctx, "h-expired", "y", now.Add(31*24*time.Hour))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessions_RevokeAllListAndDelete(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	now := time.Unix(1_700_000_000, 0)

	a := newSession(t, r, "p1", "a", now)
	newSession(t, r, "p1", "b", now.Add(time.Second))
	newSession(t, r, "p2", "c", now)

	list, err := r.ListActiveByPrincipal(ctx, "p1", now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].RefreshTokenHash)

	ok, err := r.Revoke(ctx, a.ID, "logout", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Revoke(ctx, a.ID, "logout", now)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := r.RevokeAllByPrincipal(ctx, "p1", "password_change", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, _ = r.ListActiveByPrincipal(ctx, "p1", now.Add(time.Minute))
	assert.Empty(t, list)

	deleted, err := r.DeleteExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = r.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessions_TouchKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	now := time.Unix(1_700_000_000, 0)
	s := newSession(t, r, "p1", "h", now)

	require.NoError(t, r.Touch(ctx, s.ID, now.Add(time.Hour)))
	got, err := r.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), got.LastUsedAt)
	assert.Equal(t, s.ExpiresAt, got.ExpiresAt)
}

func TestRevocations_ExpireAndPurge(t *testing.T) {
	ctx := context.Background()
	r := NewRevocationRepo()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, r.Insert(ctx, repository.RevocationEntry{TokenHash: "a", RevokedAt: now, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, r.Insert(ctx, repository.RevocationEntry{TokenHash: "b", RevokedAt: now, ExpiresAt: now.Add(time.Hour)}))

	ok, _ := r.Exists(ctx, "a", now)
	assert.True(t, ok)
	ok, _ = r.Exists(ctx, "a", now.Add(time.Minute))
	assert.False(t, ok)

	n, err := r.Purge(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Len())
}

func TestRevocations_ClaimOnlyOnce(t *testing.T) {
	ctx := context.Background()
	r := NewRevocationRepo()
	now := time.Unix(1_700_000_000, 0)
	e := repository.RevocationEntry{TokenHash: "r", RevokedAt: now, ExpiresAt: now.Add(time.Minute)}

	ok, err := r.Claim(ctx, e)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Claim(ctx, e)
	require.NoError(t, err)
	assert.False(t, ok)

	// vencida la entrada, el hash se puede volver a reclamar
	e.RevokedAt, e.ExpiresAt = now.Add(time.Minute), now.Add(time.Hour)
	ok, err = r.Claim(ctx, e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAudit_AppendAndCopy(t *testing.T) {
	r := NewAuditRepo()
	require.NoError(t, r.Append(context.Background(), repository.AuditEntry{EventType: "login", Success: true}))
	e := r.Entries()
	require.Len(t, e, 1)
	e[0].EventType = "mutated"
	assert.Equal(t, "login", r.Entries()[0].EventType)
}
