package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatHandler holds the chat and message endpoints. The listing and
// mutation bodies are not implemented yet; the routes exist so the auth
// gate in front of them is exercised end to end.
type ChatHandler struct{}

// NewChatHandler creates the handler.
func NewChatHandler() *ChatHandler {
	return &ChatHandler{}
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "chat listing not implemented"})
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "chat creation not implemented"})
}

func (h *ChatHandler) UpdateChat(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "chat update not implemented"})
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "chat deletion not implemented"})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "message listing not implemented"})
}

func (h *ChatHandler) CreateMessage(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "message creation not implemented"})
}
