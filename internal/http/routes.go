package http

import (
	"context"
	"time"

	"wishbot/internal/cache"
	"wishbot/internal/http/handlers"
	"wishbot/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

type Deps struct {
	DB       handlers.Pinger
	Redis    *redis.Client // nil when not configured
	Admin    handlers.AdminAPI
	Ledger   handlers.LedgerAPI
	AdminIDs []int64
	Version  string

	// APIRateLimit requests per APIRateWindow per client IP.
	APIRateLimit  int
	APIRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	var redisPing handlers.Pinger
	if d.Redis != nil {
		redisPing = handlers.PingFunc(func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() })
	}
	healthHandler := handlers.NewHealthHandler(d.DB, redisPing, d.Version)

	if d.APIRateLimit <= 0 {
		d.APIRateLimit = 60
	}
	if d.APIRateWindow <= 0 {
		d.APIRateWindow = time.Minute
	}

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.LocalRateLimit(d.APIRateLimit, d.APIRateWindow)
	if d.Redis != nil {
		rl = middleware.RedisRateLimit(cache.NewLimiter(d.Redis, "api", d.APIRateLimit, d.APIRateWindow))
	}

	admin := handlers.NewAdminHandler(d.Admin, d.Ledger)

	v1 := r.Group("/api/v1/admin")
	v1.Use(rl, middleware.AdminAuth(d.AdminIDs))
	{
		v1.GET("/stats", admin.Stats)
		v1.GET("/export", admin.Export)
		v1.GET("/audit", admin.Audit)
		v1.PUT("/bot", admin.SetBotEnabled)
		v1.PUT("/post", admin.SetReplyPost)
		v1.DELETE("/post", admin.ClearReplyPost)
		v1.POST("/tickets", admin.AddTickets)
		v1.POST("/wishes/reset", admin.ResetWish)
	}
}
