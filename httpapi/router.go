package httpapi

import (
	"github.com/gin-gonic/gin"

	"skillsync/collab"
	"skillsync/identity"
	"skillsync/request"
	"skillsync/settle"
	"skillsync/watcher"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Identity *identity.Service
	Requests *request.Service
	Settle   *settle.Service
	Collab   *collab.Channel
	Watcher  *watcher.Watcher
	Bus      request.Subscriber
}

// SetupRoutes registers the full API on the given engine.
func SetupRoutes(router *gin.Engine, svcs Services) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	identityHandler := NewIdentityHandler(svcs.Identity)
	requestHandler := NewRequestHandler(svcs.Requests, svcs.Settle, svcs.Bus)
	sessionHandler := NewSessionHandler(svcs.Requests, svcs.Collab, svcs.Watcher, svcs.Bus)

	auth := router.Group("/auth")
	{
		auth.POST("/register", identityHandler.Register)
		auth.POST("/login", identityHandler.Login)
	}

	v1 := router.Group("/api/v1", RequireAuth(svcs.Identity))
	{
		v1.GET("/me", identityHandler.Me)
		v1.POST("/wallet/topup", identityHandler.TopUp)

		requests := v1.Group("/requests")
		{
			requests.POST("", requestHandler.Create)
			requests.GET("/pending", requestHandler.ListPending)
			requests.GET("/pending/stream", requestHandler.StreamPending)
			requests.GET("/history", requestHandler.History)
			requests.GET("/live", requestHandler.Live)
			requests.POST("/:id/accept", requestHandler.Accept)
			requests.POST("/:id/cancel", requestHandler.Cancel)
			requests.POST("/:id/abort", requestHandler.Abort)
			requests.POST("/:id/resolve", requestHandler.Resolve)
		}

		session := v1.Group("/session")
		{
			session.GET("/stream", sessionHandler.StreamWatch)
			session.PUT("/:id/buffer", sessionHandler.WriteBuffer)
			session.GET("/:id/buffer/stream", sessionHandler.StreamBuffer)
			session.POST("/:id/chat", sessionHandler.AppendChat)
			session.GET("/:id/chat", sessionHandler.ChatLog)
			session.GET("/:id/chat/stream", sessionHandler.StreamChat)
		}
	}
}
