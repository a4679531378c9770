package bounded

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsZeroCapacity(t *testing.T) {
	_, err := New[string, int](0, 0)
	assert.Error(t, err)
}

func TestPutGet_DoesNotReorderOnRead(t *testing.T) {
	c, err := New[string, int](10, 0)
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// leer "a" no lo convierte en el más nuevo
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())

	// reemplazar sí
	c.Put("a", 10)
	assert.Equal(t, []string{"b", "c", "a"}, c.Keys())

	_, ok = c.Get("zzz")
	assert.False(t, ok)
}

func TestPut_EvictsOldestTenPercentWhenFull(t *testing.T) {
	c, err := New[string, int](100, 0)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.Zero(t, c.Put(fmt.Sprintf("k%03d", i), i))
	}
	require.Equal(t, 100, c.Len())

	evicted := c.Put("new", -1)
	assert.Equal(t, 10, evicted)
	assert.Equal(t, 91, c.Len())
	assert.Equal(t, uint64(10), c.Evictions())

	for i := 0; i < 10; i++ {
		_, ok := c.Get(fmt.Sprintf("k%03d", i))
		assert.False(t, ok, "k%03d should be evicted", i)
	}
	_, ok := c.Get("k010")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
}

func TestPut_NeverExceedsCapacity(t *testing.T) {
	c, err := New[int, int](50, 0)
	require.NoError(t, err)

	for i := 0; i < 10_000; i++ {
		c.Put(i, i)
		require.LessOrEqual(t, c.Len(), c.Cap())
	}
}

func TestPut_ReplacingExistingDoesNotEvict(t *testing.T) {
	c, err := New[string, int](2, 0)
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	assert.Zero(t, c.Put("a", 3))
	assert.Equal(t, 2, c.Len())
}

func TestSweep_RemovesExpired(t *testing.T) {
	c, err := New[string, int](10, 0)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		c.Put(fmt.Sprint(i), i)
	}
	removed := c.Sweep(func(_ string, v int) bool { return v%2 == 0 })
	assert.Equal(t, 3, removed)
	assert.Equal(t, []string{"1", "3", "5"}, c.Keys())
}

func TestDelete(t *testing.T) {
	c, err := New[string, int](3, 0.5)
	require.NoError(t, err)
	c.Put("a", 1)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Zero(t, c.Len())
}
