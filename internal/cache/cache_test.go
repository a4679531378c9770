package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetExistsDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t", 0)

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Driver)
	assert.Equal(t, int64(2), st.Hits)
}

func TestMemory_EntryExpiresWithOwnTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", 10*time.Millisecond)

	require.NoError(t, c.Set(ctx, "short", "1", 30*time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", "1", time.Hour))

	require.Eventually(t, func() bool {
		ok, _ := c.Exists(ctx, "short")
		return !ok
	}, time.Second, 10*time.Millisecond)

	ok, err := c.Exists(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedis_SetExistsWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	c := NewRedis(rdb, "hablas:")

	require.NoError(t, c.Set(ctx, "revoked:abc", "1", time.Minute))
	assert.True(t, mr.Exists("hablas:revoked:abc"))
	assert.Equal(t, time.Minute, mr.TTL("hablas:revoked:abc"))

	ok, err := c.Exists(ctx, "revoked:abc")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := c.Get(ctx, "revoked:abc")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	mr.FastForward(2 * time.Minute)
	ok, err = c.Exists(ctx, "revoked:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Get(ctx, "revoked:abc")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Ping(ctx))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer rdb.Close()

	_, err = Dial(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRedis_StatsCountsOnlyPrefix(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	require.NoError(t, mr.Set("otro:x", "1"))

	c := NewRedis(rdb, "hablas:")
	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "1", 0))

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis", st.Driver)
	assert.Equal(t, int64(2), st.Keys)
}

func TestSetNX_OnlyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	clients := map[string]Client{
		"memory": NewMemory("t", 0),
		"redis":  NewRedis(rdb, "hablas:"),
	}
	for name, c := range clients {
		t.Run(name, func(t *testing.T) {
			ok, err := c.SetNX(ctx, "once", "a", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = c.SetNX(ctx, "once", "b", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			v, err := c.Get(ctx, "once")
			require.NoError(t, err)
			assert.Equal(t, "a", v)
		})
	}
	assert.Equal(t, time.Minute, mr.TTL("hablas:once"))
}
