package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"wishbot/internal/cache"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", h, func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	return r
}

func hit(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w.Code
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	client := cache.NewRedis(addr, os.Getenv("REDIS_PASSWORD"), db)
	if client == nil {
		t.Fatalf("redis at %s is not reachable", addr)
	}
	defer client.Close()

	// small window for test, unique scope so reruns do not collide
	max := 2
	scope := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	r := newLimitedRouter(RedisRateLimit(cache.NewLimiter(client, scope, max, 2*time.Second)))

	for i := 0; i < max; i++ {
		if code := hit(r); code != 200 {
			t.Fatalf("expected 200 got %d", code)
		}
	}
	if code := hit(r); code != 429 {
		t.Fatalf("expected 429 got %d", code)
	}
}

func TestRedisRateLimit_NoRedisFailsOpen(t *testing.T) {
	r := newLimitedRouter(RedisRateLimit(cache.NewLimiter(nil, "api", 1, time.Minute)))
	for i := 0; i < 5; i++ {
		if code := hit(r); code != 200 {
			t.Fatalf("expected 200 got %d", code)
		}
	}
}

func TestLocalRateLimit(t *testing.T) {
	r := newLimitedRouter(LocalRateLimit(3, time.Hour))
	for i := 0; i < 3; i++ {
		if code := hit(r); code != 200 {
			t.Fatalf("request %d: expected 200 got %d", i, code)
		}
	}
	if code := hit(r); code != 429 {
		t.Fatalf("expected 429 got %d", code)
	}
}
