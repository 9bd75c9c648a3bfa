package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/satbox/satbox-server/internal/config"
	"github.com/satbox/satbox-server/internal/identity"
	"github.com/satbox/satbox-server/internal/inbox"
	"github.com/satbox/satbox-server/internal/query"
)

// NewServer builds the HTTP server with all API routes.
func NewServer(service *inbox.Service, engine *query.Engine, registry identity.Registry, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	messageHandlers := NewMessageHandlers(service, logger)
	inboxHandlers := NewInboxHandlers(engine, logger)
	identityHandlers := NewIdentityHandlers(registry, logger)

	limiter := newRateLimiter(cfg.RateLimitPerMin)

	api := router.Group("/api/v1")
	{
		api.POST("/messages", RateLimitMiddleware(limiter), messageHandlers.SendMessage)
		api.POST("/messages/:id/reply", messageHandlers.Reply)
		api.GET("/inbox/:address", inboxHandlers.GetInbox)
		api.PUT("/identities/:address", identityHandlers.UpsertIdentity)
	}

	server := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	stop := make(chan struct{})
	limiter.startReset(stop)
	server.RegisterOnShutdown(func() { close(stop) })

	return server
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
