package admin

import (
	"github.com/gin-gonic/gin"

	jwtsvc "flashshare/internal/pkg/jwt"
)

// RegisterRoutes registers the admin endpoints. Login is public; the
// rest require a valid admin token.
func RegisterRoutes(r *gin.RouterGroup, h *Handler, jwt *jwtsvc.Service) {
	adminGroup := r.Group("/admin")
	adminGroup.POST("/login", h.Login)

	protected := adminGroup.Group("/")
	protected.Use(RequireAdmin(jwt))
	{
		protected.GET("/config", h.GetConfig)
		protected.POST("/config", h.UpdateConfig)
		protected.POST("/password", h.ChangePassword)
		protected.GET("/stats", h.Stats)
		protected.POST("/cleanup", h.Cleanup)
		protected.POST("/reset", h.Reset)

		protected.GET("/ip-rules", h.ListRules)
		protected.POST("/ip-rules", h.AddRule)
		protected.DELETE("/ip-rules/:id", h.DeleteRule)
		protected.POST("/ip-rules/:id/toggle", h.ToggleRule)
	}
}
