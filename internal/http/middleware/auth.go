package middleware

import (
	"net/http"
	"strings"

	"wishbot/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminAuth accepts a bearer token issued by the bot's /token command and
// only for ids still listed as admins.
func AdminAuth(adminIDs []int64) gin.HandlerFunc {
	allowed := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = struct{}{}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		adminID, err := service.ParseAdminJWT(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if _, ok := allowed[adminID]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set("user_id", adminID)
		c.Next()
	}
}

// AdminID returns the id set by AdminAuth.
func AdminID(c *gin.Context) int64 {
	id, _ := c.Get("user_id")
	v, _ := id.(int64)
	return v
}
