package middleware

import (
	"net/http"
	"sync"
	"time"

	"wishbot/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// LocalRateLimit is the in-process per-IP limit used when Redis is not
// configured: maxRequests per window, refilled smoothly.
func LocalRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	every := rate.Every(window / time.Duration(max(maxRequests, 1)))

	return func(c *gin.Context) {
		metrics.RLRequests.WithLabelValues(c.FullPath()).Inc()
		ip := c.ClientIP()

		mu.Lock()
		l, ok := limiters[ip]
		if !ok {
			l = rate.NewLimiter(every, maxRequests)
			limiters[ip] = l
		}
		mu.Unlock()

		if !l.Allow() {
			metrics.RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
