package ipacl

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests from addresses the access rules deny.
// Gin's ClientIP already honours trusted proxy headers.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !service.Allowed(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied",
			})
			return
		}
		c.Next()
	}
}
