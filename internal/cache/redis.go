package cache

import (
	"context"
	"strconv"
	"time"

	"wishbot/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// NewRedis connects to Redis. It returns nil when addr is empty or the
// server does not answer a ping; every caller treats nil as "no Redis" and
// fails open.
func NewRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without it", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// incrWindow bumps the counter and starts its window in one step, so a
// counter can never be left without a TTL.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Limiter is a fixed-window counter using INCR/PEXPIRE.
// key format: rl:<window_seconds>:<scope>:<identifier>
type Limiter struct {
	client *redis.Client
	scope  string
	max    int
	window time.Duration
}

func NewLimiter(client *redis.Client, scope string, max int, window time.Duration) *Limiter {
	return &Limiter{client: client, scope: scope, max: max, window: window}
}

// Allow reports whether ident may proceed. Without Redis, or on a Redis
// error, it allows.
func (l *Limiter) Allow(ctx context.Context, ident string) bool {
	if l == nil || l.client == nil || l.max <= 0 {
		return true
	}
	val, err := incrWindow.Run(ctx, l.client, []string{l.key(ident)}, l.window.Milliseconds()).Int64()
	if err != nil {
		logger.Warn("rate limiter redis error", "scope", l.scope, "error", err)
		return true
	}
	return val <= int64(l.max)
}

func (l *Limiter) key(ident string) string {
	return "rl:" + strconv.FormatInt(int64(l.window.Seconds()), 10) + ":" + l.scope + ":" + ident
}
