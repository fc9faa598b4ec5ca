package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/api/handlers"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PATCH, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, requireAuth gin.HandlerFunc) {
	// Enable CORS for preflight requests
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		// OAuth redirect target; identity travels in the state token
		api.GET("/auth/callback", h.AuthCallback)

		authed := api.Group("", requireAuth)
		{
			// File reference endpoints
			authed.POST("/prepare-upload", h.PrepareUpload) // register file bytes
			authed.GET("/prepare-upload", h.ListReferences) // list active references

			// Upload session endpoints
			authed.POST("/upload", h.StartUpload)
			authed.GET("/uploads", h.ListUploads)
			authed.GET("/upload/status/:id", h.UploadStatus)
			authed.GET("/upload/:id/events", h.StreamUploadEvents) // SSE progress
			authed.POST("/upload/:id/retry", h.RetryUpload)
			authed.DELETE("/upload/:id", h.CancelUpload)

			// Channel credential endpoints
			authed.POST("/auth/initiate", h.InitiateAuth)
			authed.POST("/auth/refresh", h.RefreshToken)
			authed.DELETE("/auth/:channel_id", h.Disconnect)
		}
	}
}
