package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	jwtsvc "flashshare/internal/pkg/jwt"
)

// RequireAdmin guards the admin endpoints with a bearer token issued by
// Login.
func RequireAdmin(jwt *jwtsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "missing bearer token",
			})
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims, err := jwt.ValidateToken(tokenStr)
		if err != nil || claims.Role != roleAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid token",
			})
			return
		}

		c.Next()
	}
}
