package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loopchat/chatd/internal/domain"
	"github.com/loopchat/chatd/internal/service"
)

// AuthHandler exposes the signup and signin endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Signup registers a user and returns a session token with 201. A duplicate
// email yields 409 with the conflicting address in the body.
func (h *AuthHandler) Signup(c *gin.Context) {
	var input domain.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signup payload"})
		return
	}

	output, _, err := h.Auth.Signup(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, output)
}

// Signin verifies credentials and returns a session token with 200. The 401
// body is identical for unknown email and wrong password.
func (h *AuthHandler) Signin(c *gin.Context) {
	var input domain.SigninInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signin payload"})
		return
	}

	output, _, err := h.Auth.Signin(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}

// Index is a plain liveness endpoint.
func (h *AuthHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "index")
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	switch {
	case domain.IsEmailExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrWorkspaceRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrWorkspaceRequired.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
	default:
		zap.L().Error("auth handler failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
