package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/dropDatabas3/hablas/internal/cache/bounded"
	"github.com/dropDatabas3/hablas/internal/metrics"
)

// DefaultShards es la cantidad de shards del contador en memoria.
const DefaultShards = 16

type window struct {
	count   int64
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries *bounded.Cache[string, *window]
}

// MemoryCounter es el contador in-process: mismas semánticas que RedisCounter
// para una sola instancia. Las keys se reparten en shards por xxhash; cada
// shard tiene su mutex (una sección crítica por key, nunca un lock global)
// y su propio techo de entradas.
type MemoryCounter struct {
	shards []*shard
	now    func() time.Time
}

// NewMemoryCounter reparte maxKeys entre nShards (<= 0 usa DefaultShards).
func NewMemoryCounter(maxKeys, nShards int, now func() time.Time) (*MemoryCounter, error) {
	if nShards <= 0 {
		nShards = DefaultShards
	}
	if maxKeys < nShards {
		nShards = 1
	}
	if now == nil {
		now = time.Now
	}
	perShard := (maxKeys + nShards - 1) / nShards
	m := &MemoryCounter{shards: make([]*shard, nShards), now: now}
	for i := range m.shards {
		c, err := bounded.New[string, *window](perShard, bounded.DefaultEvictFraction)
		if err != nil {
			return nil, fmt.Errorf("rate: memory shard: %w", err)
		}
		m.shards[i] = &shard{entries: c}
	}
	return m, nil
}

func (m *MemoryCounter) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// Incr incrementa el contador de key; abre una ventana nueva si no existe o
// si la anterior ya venció.
func (m *MemoryCounter) Incr(_ context.Context, key string, win time.Duration) (int64, time.Time, error) {
	if win <= 0 {
		return 0, time.Time{}, fmt.Errorf("rate: invalid window %s", win)
	}
	now := m.now()
	sh := m.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.entries.Get(key)
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(win)}
		if n := sh.entries.Put(key, w); n > 0 {
			metrics.RateLimitEvictions.Add(float64(n))
		}
		return w.count, w.resetAt, nil
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Reset borra el contador de key.
func (m *MemoryCounter) Reset(_ context.Context, key string) error {
	sh := m.shardFor(key)
	sh.mu.Lock()
	sh.entries.Delete(key)
	sh.mu.Unlock()
	return nil
}

// Sweep elimina ventanas vencidas. Devuelve cuántas eliminó.
func (m *MemoryCounter) Sweep() int {
	now := m.now()
	total := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		total += sh.entries.Sweep(func(_ string, w *window) bool {
			return !now.Before(w.resetAt)
		})
		sh.mu.Unlock()
	}
	return total
}

// Len devuelve la cantidad de keys rastreadas.
func (m *MemoryCounter) Len() int {
	total := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		total += sh.entries.Len()
		sh.mu.Unlock()
	}
	return total
}

// Cap devuelve el techo total de keys.
func (m *MemoryCounter) Cap() int {
	total := 0
	for _, sh := range m.shards {
		total += sh.entries.Cap()
	}
	return total
}
