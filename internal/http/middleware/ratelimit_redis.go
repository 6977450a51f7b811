package middleware

import (
	"net/http"

	"wishbot/internal/cache"
	"wishbot/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RedisRateLimit is a per-IP fixed-window limit shared by every replica.
// A limiter without Redis allows everything.
func RedisRateLimit(l *cache.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.RLRequests.WithLabelValues(c.FullPath()).Inc()

		if !l.Allow(c.Request.Context(), c.ClientIP()) {
			metrics.RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
