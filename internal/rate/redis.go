package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// incrScript: INCR + PEXPIRE en el primer hit, atómico del lado del servidor.
// Si la key quedó sin TTL (ej: PEXPIRE perdido) se lo repone.
var incrScript = rdb.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// RedisCounter: fixed window distribuido (INCR + EXPIRE en el primer hit).
type RedisCounter struct {
	Client *rdb.Client
	Prefix string
	now    func() time.Time
}

func NewRedisCounter(client *rdb.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisCounter{Client: client, Prefix: prefix, now: time.Now}
}

func (c *RedisCounter) key(k string) string {
	return c.Prefix + strings.ReplaceAll(k, " ", "_")
}

// Incr incrementa el contador de la ventana actual de key.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		return 0, time.Time{}, fmt.Errorf("rate: invalid window %s", window)
	}
	res, err := incrScript.Run(ctx, c.Client, []string{c.key(key)}, ms).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("rate: unexpected script reply %v", res)
	}
	resetAt := c.now().Add(time.Duration(res[1]) * time.Millisecond)
	return res[0], resetAt, nil
}

// Reset borra el contador de key.
func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	return c.Client.Del(ctx, c.key(key)).Err()
}
