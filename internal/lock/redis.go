package lock

import (
	"context"
	"time"

	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a distributed lock over SET NX PX
type RedisLocker struct {
	*scoped
}

// NewRedisLocker creates a lock backed by client
func NewRedisLocker(client redis.UniversalClient, cfg Config, logger ports.Logger) *RedisLocker {
	return &RedisLocker{scoped: &scoped{
		store:  &redisStore{client: client},
		cfg:    cfg,
		logger: logger,
	}}
}

type redisStore struct {
	client redis.UniversalClient
}

func (r *redisStore) tryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, token, ttl).Result()
}

func (r *redisStore) release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
