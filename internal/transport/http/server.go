package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat/internal/auth"
	"github.com/vovakirdan/pairchat/internal/config"
	"github.com/vovakirdan/pairchat/internal/core"
)

// Services are the collaborators the HTTP layer routes requests to.
type Services struct {
	Auth          *auth.Service
	Hub           *core.Hub
	Dispatcher    *core.Dispatcher
	Conversations *core.Conversations
	// MediaDir is served statically under cfg.MediaURLPrefix when set.
	MediaDir string
}

// NewServer builds the HTTP server with REST, websocket and media routes.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	wsHandler := NewWSHandler(svc, cfg, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	if svc.MediaDir != "" {
		router.Static(cfg.MediaURLPrefix, svc.MediaDir)
	}

	apiHandlers := NewAPIHandlers(svc.Auth, logger)
	userHandlers := NewUserHandlers(svc.Conversations, svc.Hub, logger)
	messageHandlers := NewMessageHandlers(svc.Dispatcher, svc.Conversations, logger)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/signup", apiHandlers.Signup)
		authGroup.POST("/login", apiHandlers.Login)
		authGroup.GET("/check", AuthMiddleware(svc.Auth, logger), apiHandlers.Check)

		messages := api.Group("/messages")
		messages.Use(AuthMiddleware(svc.Auth, logger))
		messages.GET("/users", userHandlers.ListPeers)
		messages.GET("/conversations", userHandlers.ListConversations)
		messages.GET("/:id", messageHandlers.GetConversation)
		messages.PUT("/mark/:id", messageHandlers.MarkMessageSeen)
		messages.PUT("/seen/:id", messageHandlers.MarkSeen)
		messages.POST("/send/:id", messageHandlers.Send)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
