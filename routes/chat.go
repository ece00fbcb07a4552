package routes

import (
	"context"
	"errors"
	"net/http"

	"pdf-chat-service/models"
	"pdf-chat-service/services"
	"pdf-chat-service/utils"

	"github.com/gin-gonic/gin"
)

// ChatAnswerer is what the chat route needs from services.ChatService
type ChatAnswerer interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

func SetupChatRoutes(router *gin.Engine, chat ChatAnswerer) {
	router.POST("/api/chat", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Missing required fields: message and documentId", err.Error())
			return
		}

		ctx, cancel := utils.WithChatTimeout(c.Request.Context())
		defer cancel()

		resp, err := chat.Chat(ctx, req)
		if err != nil {
			c.Error(err)
			if errors.Is(err, services.ErrInvalidInput) {
				utils.RespondWithBadRequest(c, "Missing required fields: message and documentId", nil)
				return
			}
			utils.RespondWithInternalError(c, "Failed to generate chat response", nil)
			return
		}

		c.JSON(http.StatusOK, resp)
	})
}

// SetupHealthRoutes registers the liveness probe
func SetupHealthRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
	})
}
