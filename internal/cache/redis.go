package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialPingTimeout = 5 * time.Second

// Open arma el cliente desde REDIS_URL sin tocar la red. Si Redis todavía
// no está arriba, el limiter arranca en modo in-process y se recupera solo.
func Open(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Dial exige que Redis responda antes de devolver el cliente.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	rdb, err := Open(url)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, dialPingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return rdb, nil
}

// redisCache prefija cada key para compartir la base con el limiter.
type redisCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) Client {
	return &redisCache{rdb: rdb, prefix: prefix}
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("cache: redis get: %w", err)
	}
	return v, nil
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.rdb.SetNX(ctx, r.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: redis setnx: %w", err)
	}
	return ok, nil
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: redis exists: %w", err)
	}
	return n == 1, nil
}

func (r *redisCache) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

// Close es no-op: el cliente pertenece al wiring.
func (r *redisCache) Close() error { return nil }

// Stats cuenta sólo las keys bajo el prefijo, vía SCAN.
func (r *redisCache) Stats(ctx context.Context) (Stats, error) {
	var n int64
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("cache: redis scan: %w", err)
	}
	return Stats{Driver: "redis", Keys: n}, nil
}
