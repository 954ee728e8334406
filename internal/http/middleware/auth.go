package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loopchat/chatd/internal/domain"
	"github.com/loopchat/chatd/internal/jwt"
	"github.com/loopchat/chatd/internal/metrics"
)

const principalKey = "principal"

type principalCtxKey struct{}

// Auth gates protected routes behind a bearer token. The status contract is
// deliberate and load-bearing: a missing or unparseable Authorization header
// is 401 (no credential presented), a credential that fails verification is
// 403 (credential presented but invalid).
type Auth struct {
	Verifier *jwt.Verifier
	Metrics  metrics.Recorder
}

// RequireToken verifies the bearer credential and attaches the principal to
// the request context before forwarding.
func (m *Auth) RequireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":             "missing_credential",
			"error_description": "Authorization header required.",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":             "missing_credential",
			"error_description": "Bearer token required.",
		})
		return
	}

	user, err := m.Verifier.Verify(strings.TrimSpace(parts[1]))
	if err != nil {
		zap.L().Warn("token verification failed", zap.Error(err))
		if m.Metrics != nil {
			m.Metrics.TokenRejected(rejectionKind(err))
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":             "invalid_token",
			"error_description": "Error verifying token: " + err.Error(),
		})
		return
	}

	if m.Metrics != nil {
		m.Metrics.TokenVerified()
	}

	c.Set(principalKey, user)
	ctx := context.WithValue(c.Request.Context(), principalCtxKey{}, user)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// GetPrincipal returns the authenticated user attached by RequireToken.
func GetPrincipal(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

// PrincipalFromContext extracts the principal from a standard context.
func PrincipalFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(principalCtxKey{}).(domain.User)
	return user, ok
}

func rejectionKind(err error) string {
	var tokenErr *jwt.TokenError
	if errors.As(err, &tokenErr) {
		return string(tokenErr.Kind)
	}
	return "unknown"
}
