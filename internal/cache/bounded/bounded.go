// Package bounded implementa un cache acotado por cantidad de entradas y
// ordenado por inserción. Cuando se llena, desaloja de una vez el ~10% más
// antiguo antes de insertar, así un ataque de enumeración de keys no puede
// hacer crecer la memoria sin límite.
//
// No es seguro para uso concurrente: el llamador serializa el acceso (los
// shards del rate limiter en memoria tienen su propio mutex).
package bounded

import (
	"fmt"
	"math"

	"github.com/hashicorp/golang-lru/simplelru"
)

// DefaultEvictFraction es la fracción desalojada cuando se alcanza el techo.
const DefaultEvictFraction = 0.10

// Cache es un mapa acotado con orden de inserción.
// Get usa Peek: leer no altera el orden; solo Put mueve una key al final.
type Cache[K comparable, V any] struct {
	capacity  int
	batch     int
	lru       *simplelru.LRU
	evictions uint64
}

// New crea un cache con techo capacity (> 0) y fracción de desalojo en (0, 1].
// fraction <= 0 usa DefaultEvictFraction.
func New[K comparable, V any](capacity int, fraction float64) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("bounded: capacity must be > 0, got %d", capacity)
	}
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultEvictFraction
	}
	batch := int(math.Ceil(float64(capacity) * fraction))
	if batch < 1 {
		batch = 1
	}
	// El LRU interno nunca llega a desalojar solo: Put libera lugar antes.
	lru, err := simplelru.NewLRU(capacity+1, nil)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{capacity: capacity, batch: batch, lru: lru}, nil
}

// Get devuelve el valor sin alterar el orden.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	v, ok := c.lru.Peek(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Put inserta o reemplaza k (queda como la entrada más nueva).
// Si el cache está lleno y k es nueva, primero desaloja el lote más antiguo.
// Devuelve cuántas entradas se desalojaron.
func (c *Cache[K, V]) Put(k K, v V) int {
	evicted := 0
	if !c.lru.Contains(k) && c.lru.Len() >= c.capacity {
		evicted = c.EvictOldest(c.batch)
	}
	c.lru.Add(k, v)
	return evicted
}

// EvictOldest desaloja hasta n entradas empezando por la más antigua.
func (c *Cache[K, V]) EvictOldest(n int) int {
	removed := 0
	for removed < n {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		removed++
	}
	c.evictions += uint64(removed)
	return removed
}

// Delete elimina k. Devuelve true si existía.
func (c *Cache[K, V]) Delete(k K) bool {
	return c.lru.Remove(k)
}

// Sweep recorre de la más antigua a la más nueva y elimina las entradas para
// las que expired devuelve true. Devuelve cuántas eliminó.
func (c *Cache[K, V]) Sweep(expired func(K, V) bool) int {
	removed := 0
	for _, raw := range c.lru.Keys() {
		k := raw.(K)
		v, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if expired(k, v.(V)) {
			c.lru.Remove(k)
			removed++
		}
	}
	return removed
}

// Len devuelve la cantidad de entradas.
func (c *Cache[K, V]) Len() int { return c.lru.Len() }

// Cap devuelve el techo configurado.
func (c *Cache[K, V]) Cap() int { return c.capacity }

// Evictions devuelve el total de desalojos por capacidad.
func (c *Cache[K, V]) Evictions() uint64 { return c.evictions }

// Keys devuelve las keys de la más antigua a la más nueva.
func (c *Cache[K, V]) Keys() []K {
	raw := c.lru.Keys()
	out := make([]K, 0, len(raw))
	for _, k := range raw {
		out = append(out, k.(K))
	}
	return out
}
