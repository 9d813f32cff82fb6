package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"project-chat/internal/auth"
	"project-chat/internal/chat"
	"project-chat/internal/config"
	"project-chat/internal/database"
	"project-chat/internal/handlers"
	"project-chat/internal/services"
	"project-chat/pkg/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	// Initialize database
	ctx := context.Background()
	db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database: %v", err)
		}
	}

	// Initialize services
	authService := auth.NewService(db, cfg)
	accessService := services.NewAccessService(db)

	// Chat state lives for the lifetime of the process
	hub := chat.NewHub()
	manager := chat.NewManager(hub, accessService, db, chat.Options{
		HistoryLimit:    cfg.Chat.HistoryLimit,
		MaxMessageBytes: cfg.Chat.MaxMessageBytes,
		TypingTTL:       cfg.Chat.TypingTTL,
	})
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go manager.RunTypingSweeper(sweepCtx)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	projectHandlers := handlers.NewProjectHandlers(authService, accessService, db, cfg.Chat.HistoryLimit)
	healthHandlers := handlers.NewHealthHandlers(db, hub)
	wsHandlers := handlers.NewWebSocketHandlers(authService, manager, cfg)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, projectHandlers, healthHandlers, wsHandlers)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws?token=<jwt>", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// Operations run concurrently, so the pool is closed only after
			// the server has drained.
			"chat-server": func(ctx context.Context) error {
				// Hijacked sockets are not tracked by Shutdown; the manager
				// closes them.
				stopSweeper()
				manager.Shutdown()
				err := server.Shutdown(ctx)
				if closeErr := db.Close(); closeErr != nil {
					logger.Error("Error closing database: %v", closeErr)
				}
				return err
			},
		},
	)

	exitCode := <-wait
	logger.Info("Server exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, projectHandlers *handlers.ProjectHandlers, healthHandlers *handlers.HealthHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("POST /api/auth/register", authHandlers.Register)
	mux.HandleFunc("POST /api/auth/login", authHandlers.Login)

	// Project chat history
	mux.HandleFunc("GET /api/projects/{id}/messages", projectHandlers.GetMessages)

	// WebSocket route
	mux.HandleFunc("GET /ws", wsHandlers.HandleWebSocket)

	mux.HandleFunc("GET /health", healthHandlers.Health)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("API endpoints:")
	logger.Info("   POST /api/auth/register")
	logger.Info("   POST /api/auth/login")
	logger.Info("   GET  /api/projects/{id}/messages")
	logger.Info("   GET  /ws")
	logger.Info("   GET  /health")
}
