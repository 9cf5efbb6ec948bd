package main

import (
	"chat-presence/auth"
	"chat-presence/internal"
	"chat-presence/observability"
	"chat-presence/repositories"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/server"
	"chat-presence/services"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every defer (database included) runs before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if !config.SecureCookies() {
		log.Warn("Credential cookies are not marked Secure", "node_env", config.NodeEnv)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Session and presence core
	metrics := observability.NewMetrics()
	issuer := auth.NewIssuer(log, []byte(config.JWTSecret), nil)
	userRepository := repositories.NewUserRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)

	registry := runtime.NewRegistry(config.MaxConnections)
	hub := runtime.NewHub(log, registry, runtime.NewPresenceBroadcaster(log, metrics), metrics)
	relay := runtime.NewRelay(log, registry, metrics)
	cookie := auth.CookieOptions{Secure: config.SecureCookies(), Domain: config.CookieDomain}

	router := server.NewRouter(server.Dependencies{
		Log:         log,
		Gate:        auth.NewGate(log, issuer, userRepository, cookie, metrics),
		AuthService: services.NewAuthService(log, userRepository, issuer),
		ChatService: services.NewChatService(log, userRepository, messageRepository, relay, nil),
		Hub:         hub,
		Metrics:     metrics,
		Socket: server.SocketConfig{
			BufferSize:    config.ConnectionBufferSize,
			PingInterval:  config.PingInterval,
			WriteTimeout:  config.WriteTimeout,
			AllowedOrigin: config.AllowedOrigin,
		},
	})

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sockets inherit ctx, so they are closed when it is cancelled.
	httpServer := &http.Server{
		Addr:        config.Address(),
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(log, httpServer, config.ShutdownTimeout),
		workers.NewPresenceReporter(log, registry, metrics, config.MetricInterval),
	)
	sup.Run(ctx)

	// 6. Final Cleanup
	if err = hub.Shutdown(context.Background()); err != nil {
		log.Warn("Some sessions did not close cleanly", "error", err)
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}
