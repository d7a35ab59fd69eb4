package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/auth"
	"github.com/vovakirdan/ephemeral-chat/internal/config"
	"github.com/vovakirdan/ephemeral-chat/internal/core"
	"github.com/vovakirdan/ephemeral-chat/internal/store"
)

// NewServer builds the HTTP server: auth, archive REST and the realtime socket.
func NewServer(hub *core.Hub, authService *auth.Service, messages store.MessageStore, cfg *config.ServerConfig, logger *zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	restHandlers := NewRESTHandlers(messages, logger)
	requireAuth := AuthMiddleware(authService, logger)

	authGroup := router.Group("/auth/v1")
	{
		authGroup.POST("/signup", apiHandlers.SignUp)
		authGroup.POST("/token", apiHandlers.Token)
		authGroup.POST("/logout", requireAuth, apiHandlers.Logout)
		authGroup.GET("/user", requireAuth, apiHandlers.User)
	}

	router.POST("/rest/v1/:table", requireAuth, restHandlers.Insert)

	wsHandler := NewWSHandler(hub, authService, WSOptions{
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerMinute: cfg.MessagesPerMinute,
	}, logger)
	// The socket bypasses gin: its response writer wrapper corrupts hijacked streams.
	mux := http.NewServeMux()
	mux.Handle("/realtime/v1/websocket", wsHandler)
	mux.Handle("/", router)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
