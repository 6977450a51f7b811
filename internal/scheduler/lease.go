package scheduler

import (
	"context"
	"time"

	"wishbot/internal/logger"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const leaseKey = "wishbot:broadcast:lease"

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease lets one replica at a time run a broadcast cycle.
// A nil client, or any Redis error, grants the lease.
type RedisLease struct {
	client *redis.Client
	key    string
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client, key: leaseKey}
}

func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (func(), bool) {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop, true
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		logger.Warn("broadcast lease unavailable, proceeding without it", "error", err)
		return noop, true
	}
	if !ok {
		return noop, false
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			logger.Warn("release broadcast lease", "error", err)
		}
	}, true
}
