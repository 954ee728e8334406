package middleware_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/loopchat/chatd/internal/domain"
	"github.com/loopchat/chatd/internal/http/middleware"
	"github.com/loopchat/chatd/internal/jwt"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *jwt.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := &middleware.Auth{Verifier: jwt.NewVerifier(pub)}
	router := gin.New()
	router.GET("/protected", auth.RequireToken, func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		require.True(t, ok)
		fromCtx, ok := middleware.PrincipalFromContext(c.Request.Context())
		require.True(t, ok)
		require.Equal(t, principal, fromCtx)
		c.JSON(http.StatusOK, gin.H{"email": principal.Email})
	})
	return router, jwt.NewIssuer(priv)
}

func TestRequireTokenNoHeader(t *testing.T) {
	router, _ := newAuthRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "missing_credential")
}

func TestRequireTokenMalformedHeader(t *testing.T) {
	router, _ := newAuthRouter(t)

	for _, header := range []string{"Bearer", "Bearer ", "Basic dXNlcjpwdw==", "token-without-scheme"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestRequireTokenInvalidToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid_token")
}

func TestRequireTokenForeignSignature(t *testing.T) {
	router, _ := newAuthRouter(t)

	_, otherKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	token, err := jwt.NewIssuer(otherKey).Sign(domain.User{ID: 1, Email: "a@x.com"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireTokenValid(t *testing.T) {
	router, issuer := newAuthRouter(t)

	token, err := issuer.Sign(domain.User{
		ID:          7,
		WorkspaceID: 3,
		Fullname:    "A",
		Email:       "a@x.com",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "a@x.com")
}
