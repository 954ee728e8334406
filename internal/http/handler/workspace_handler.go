package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loopchat/chatd/internal/http/middleware"
	"github.com/loopchat/chatd/internal/service"
)

// WorkspaceHandler serves workspace membership queries for the
// authenticated principal's workspace.
type WorkspaceHandler struct {
	Auth *service.AuthService
}

// NewWorkspaceHandler creates the handler.
func NewWorkspaceHandler(auth *service.AuthService) *WorkspaceHandler {
	return &WorkspaceHandler{Auth: auth}
}

// ListMembers returns the members of the principal's workspace, sorted
// ascending by id.
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no principal on request"})
		return
	}

	members, err := h.Auth.ListWorkspaceMembers(c.Request.Context(), principal.WorkspaceID)
	if err != nil {
		zap.L().Error("list workspace members failed",
			zap.Int64("ws_id", principal.WorkspaceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, members)
}
