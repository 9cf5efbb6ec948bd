package server

import (
	"chat-presence/auth"
	"chat-presence/contract"
	"chat-presence/errors"
	"chat-presence/observability"
	"chat-presence/runtime"
	"chat-presence/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	Log         *slog.Logger
	Gate        *auth.Gate
	AuthService services.IAuthService
	ChatService services.IChatService
	Hub         *runtime.Hub
	Metrics     *observability.Metrics
	Clock       clock.Clock
	Socket      SocketConfig
}

// NewRouter wires every route of the API on a fresh gin engine.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Log))

	authHandler := NewAuthHandler(deps.Log, deps.AuthService, deps.Gate.Cookie())
	messageHandler := NewMessageHandler(deps.Log, deps.ChatService)
	socketHandler := NewSocketHandler(deps.Log, deps.Gate, deps.Hub, deps.Metrics, deps.Socket)
	requireAuth := deps.Gate.RequireAuth()

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.PUT("/update-profile", requireAuth, authHandler.UpdateProfile)
		authRoutes.GET("/check", requireAuth, authHandler.Check)

		messageRoutes := api.Group("/messages", requireAuth)
		messageRoutes.GET("/users", messageHandler.Users)
		messageRoutes.GET("/:id", messageHandler.Conversation)
		messageRoutes.POST("/send/:id", messageHandler.Send)

		api.GET("/health", healthHandler(deps.Hub.Registry(), deps.Clock))
	}

	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	router.GET("/socket", socketHandler.Serve)

	return router
}

func healthHandler(registry contract.IRegistry, clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": clk.Now().UTC().Format(time.RFC3339),
			"online":    len(registry.SnapshotOnlineIDs()),
		})
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func abortWithError(c *gin.Context, err error) {
	httpErr := errors.MapToHTTPError(err)
	c.AbortWithStatusJSON(httpErr.Status, httpErr)
}
