package share

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the public share endpoints. The group is
// expected to carry the IP access middleware.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/upload", h.Upload)
	r.GET("/d/:code", h.Redeem)
	r.GET("/file-info/:code", h.Info)
}
