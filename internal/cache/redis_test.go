package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"
)

func TestLimiter_NoRedisAllows(t *testing.T) {
	var nilLimiter *Limiter
	if !nilLimiter.Allow(context.Background(), "1") {
		t.Fatalf("nil limiter must allow")
	}
	l := NewLimiter(nil, "wish", 1, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow(context.Background(), "1") {
			t.Fatalf("limiter without redis must allow")
		}
	}
}

func TestLimiter_Key(t *testing.T) {
	l := NewLimiter(nil, "api", 10, time.Minute)
	if got := l.key("10.0.0.1"); got != "rl:60:api:10.0.0.1" {
		t.Fatalf("key = %q", got)
	}
}

// Runs only if REDIS_ADDR env is set.
func TestLimiter_CounterAlwaysExpires(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	client := NewRedis(addr, os.Getenv("REDIS_PASSWORD"), 0)
	if client == nil {
		t.Fatalf("redis at %s is not reachable", addr)
	}
	defer client.Close()

	ctx := context.Background()
	scope := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	l := NewLimiter(client, scope, 1, 2*time.Second)
	key := l.key("7")
	defer client.Del(ctx, key)

	if !l.Allow(ctx, "7") {
		t.Fatalf("first hit must pass")
	}
	if ttl := client.PTTL(ctx, key).Val(); ttl <= 0 {
		t.Fatalf("ttl after first hit = %v", ttl)
	}

	// a counter left over without a TTL must not block forever
	if err := client.Set(ctx, key, 5, 0).Err(); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	if l.Allow(ctx, "7") {
		t.Fatalf("over-limit hit must be blocked")
	}
	if ttl := client.PTTL(ctx, key).Val(); ttl <= 0 {
		t.Fatalf("stale counter still has no ttl: %v", ttl)
	}

	time.Sleep(2100 * time.Millisecond)
	if !l.Allow(ctx, "7") {
		t.Fatalf("window did not reset")
	}
}
