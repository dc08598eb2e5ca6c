package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tutor-chat/internal/middleware"
	"tutor-chat/internal/models"
	"tutor-chat/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, tokens *middleware.TokenManager, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Issues a bearer token for local testing of the chat client.
	router.POST("/debug/token", func(c *gin.Context) {
		if tokens == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token manager not configured"})
			return
		}
		var req struct {
			ID        int    `json:"id" binding:"required"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, err := tokens.Issue(models.Author{ID: req.ID, FirstName: req.FirstName, LastName: req.LastName}, 24*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})
}
