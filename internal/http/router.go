// Package http wires the gin router for the chat service.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/loopchat/chatd/internal/config"
	"github.com/loopchat/chatd/internal/http/handler"
	httpmiddleware "github.com/loopchat/chatd/internal/http/middleware"
	"github.com/loopchat/chatd/internal/middleware"
)

// NewRouter wires routes and middleware. Signup and signin are open; every
// other /api route sits behind the bearer-token gate.
func NewRouter(cfg config.Config, auth *handler.AuthHandler, workspaces *handler.WorkspaceHandler, chats *handler.ChatHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/", auth.Index)
	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.POST("/signup", auth.Signup)
		api.POST("/signin", auth.Signin)

		protected := api.Group("")
		protected.Use(authMiddleware.RequireToken)
		{
			protected.GET("/users", workspaces.ListMembers)
			protected.GET("/chat", chats.ListChats)
			protected.POST("/chat", chats.CreateChat)
			protected.PATCH("/chat/:id", chats.UpdateChat)
			protected.DELETE("/chat/:id", chats.DeleteChat)
			protected.GET("/chat/:id/messages", chats.ListMessages)
			protected.POST("/chat/:id/messages", chats.CreateMessage)
		}
	}

	return r
}
