// Package cache es el key/value con TTL que respalda las entradas de
// revocación: go-cache en un proceso, Redis cuando hay varias réplicas.
// El *redis.Client lo abre el wiring y se comparte con el rate limiter.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client es lo mínimo que necesitan los registros con TTL.
// ttl <= 0 significa sin vencimiento.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX escribe solo si la key no existe. ok=false => ya existía.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
	Stats(ctx context.Context) (Stats, error)
}

// Stats resume el contenido del backend. Redis no cuenta hits ni misses.
type Stats struct {
	Driver string `json:"driver"`
	Keys   int64  `json:"keys"`
	Hits   int64  `json:"hits"`
	Misses int64  `json:"misses"`
}

var ErrNotFound = errors.New("cache: key not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
