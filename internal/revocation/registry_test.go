package revocation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/cache"
	"github.com/dropDatabas3/hablas/internal/store/memory"
)

func TestCacheRegistry_Memory(t *testing.T) {
	ctx := context.Background()
	r := NewCacheRegistry(cache.NewMemory("test:", time.Minute), nil)

	ok, err := r.IsBlacklisted(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Blacklist(ctx, "abc", time.Now().Add(80*time.Millisecond)))
	ok, err = r.IsBlacklisted(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	// la entrada muere con la expiración natural del token
	time.Sleep(150 * time.Millisecond)
	ok, err = r.IsBlacklisted(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheRegistry_PastExpiryIsNoop(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory("test:", time.Minute)
	r := NewCacheRegistry(c, nil)

	require.NoError(t, r.Blacklist(ctx, "old", time.Now().Add(-time.Second)))
	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Keys)

	assert.ErrorIs(t, r.Blacklist(ctx, "", time.Now().Add(time.Hour)), ErrEmptyHash)
}

func TestCacheRegistry_Redis(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Unix(1_700_000_000, 0)
	r := NewCacheRegistry(cache.NewRedis(client, "hablas:"), func() time.Time { return now })

	require.NoError(t, r.Blacklist(ctx, "deadbeef", now.Add(time.Hour)))
	assert.True(t, m.Exists("hablas:revoked:deadbeef"))
	assert.Equal(t, time.Hour, m.TTL("hablas:revoked:deadbeef"))

	ok, err := r.IsBlacklisted(ctx, "deadbeef")
	require.NoError(t, err)
	assert.True(t, ok)

	m.FastForward(time.Hour)
	ok, err = r.IsBlacklisted(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheRegistry_RedisDownFailsClosed(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	r := NewCacheRegistry(cache.NewRedis(client, ""), nil)

	m.Close()
	_, err := r.IsBlacklisted(ctx, "x")
	assert.Error(t, err)
}

func TestStoreRegistry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	repo := memory.NewRevocationRepo()
	r := NewStoreRegistry(repo, clock)

	require.NoError(t, r.Blacklist(ctx, "h1", now.Add(time.Minute)))
	require.NoError(t, r.Blacklist(ctx, "h2", now.Add(-time.Minute)))
	assert.Equal(t, 1, repo.Len())

	ok, err := r.IsBlacklisted(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = r.IsBlacklisted(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := r.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type failingRegistry struct{ err error }

func (f failingRegistry) Blacklist(context.Context, string, time.Time) error { return f.err }
func (f failingRegistry) IsBlacklisted(context.Context, string) (bool, error) {
	return false, f.err
}
func (f failingRegistry) Claim(context.Context, string, time.Time) (bool, error) {
	return false, f.err
}

func TestTiered(t *testing.T) {
	ctx := context.Background()
	front := NewCacheRegistry(cache.NewMemory("", time.Minute), nil)
	durable := NewStoreRegistry(memory.NewRevocationRepo(), nil)
	tr := NewTiered(front, durable, zap.NewNop())

	require.NoError(t, tr.Blacklist(ctx, "h", time.Now().Add(time.Hour)))
	ok, err := tr.IsBlacklisted(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ok)

	// perdido en el frente (ej: Redis reiniciado), el durable lo confirma
	frontEmpty := NewTiered(NewCacheRegistry(cache.NewMemory("", time.Minute), nil), durable, zap.NewNop())
	ok, err = frontEmpty.IsBlacklisted(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTiered_FrontErrorFallsThrough_DurableErrorFailsClosed(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	durable := NewStoreRegistry(memory.NewRevocationRepo(), nil)
	require.NoError(t, durable.Blacklist(ctx, "h", time.Now().Add(time.Hour)))

	tr := NewTiered(failingRegistry{err: boom}, durable, zap.NewNop())
	ok, err := tr.IsBlacklisted(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ok)
	// el frente caído no hace fallar el blacklist
	require.NoError(t, tr.Blacklist(ctx, "h2", time.Now().Add(time.Hour)))

	tr = NewTiered(NewCacheRegistry(cache.NewMemory("", time.Minute), nil), failingRegistry{err: boom}, zap.NewNop())
	_, err = tr.IsBlacklisted(ctx, "h")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, tr.Blacklist(ctx, "h", time.Now().Add(time.Hour)), boom)
}

// claimRace lanza n Claim concurrentes sobre el mismo hash y cuenta ganadores.
func claimRace(t *testing.T, r Registry, n int) int64 {
	t.Helper()
	var (
		wg   sync.WaitGroup
		wins atomic.Int64
	)
	exp := time.Now().Add(time.Hour)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.Claim(context.Background(), "reset-h", exp)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	return wins.Load()
}

func TestClaim_SingleWinner(t *testing.T) {
	m := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registries := map[string]Registry{
		"memory-cache": NewCacheRegistry(cache.NewMemory("", time.Minute), nil),
		"redis-cache":  NewCacheRegistry(cache.NewRedis(client, "claim:"), nil),
		"store":        NewStoreRegistry(memory.NewRevocationRepo(), nil),
		"tiered": NewTiered(
			NewCacheRegistry(cache.NewMemory("", time.Minute), nil),
			NewStoreRegistry(memory.NewRevocationRepo(), nil),
			zap.NewNop()),
	}
	for name, r := range registries {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, int64(1), claimRace(t, r, 16))

			ok, err := r.IsBlacklisted(context.Background(), "reset-h")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestClaim_AfterBlacklistLoses(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	r := NewStoreRegistry(memory.NewRevocationRepo(), func() time.Time { return now })

	require.NoError(t, r.Blacklist(ctx, "h", now.Add(time.Minute)))
	ok, err := r.Claim(ctx, "h", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Claim(ctx, "late", now.Add(-time.Second))
	assert.ErrorIs(t, err, ErrExpired)
	_, err = r.Claim(ctx, "", now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrEmptyHash)

	// una entrada vencida no bloquea un nuevo claim
	now = now.Add(2 * time.Minute)
	ok, err = r.Claim(ctx, "h", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTiered_ClaimDurableDownFailsClosed(t *testing.T) {
	boom := errors.New("boom")
	tr := NewTiered(NewCacheRegistry(cache.NewMemory("", time.Minute), nil), failingRegistry{err: boom}, zap.NewNop())
	ok, err := tr.Claim(context.Background(), "h", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}
