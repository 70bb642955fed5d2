package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookswap/internal/auth"
	"bookswap/internal/cache"
	"bookswap/internal/config"
	"bookswap/internal/handler"
	"bookswap/internal/messaging"
	"bookswap/internal/middleware"
	"bookswap/internal/observability"
	"bookswap/internal/repository/postgres"
	"bookswap/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting bookswap chat server")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	redisClient, err := config.NewRedisClient(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("connected to redis")

	rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer rmqCancel()

	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()
	slog.Info("connected to rabbitmq")

	chatCache := cache.New(redisClient)

	threadRepo := postgres.NewThreadRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	chatService := service.NewChatService(threadRepo, messageRepo, chatCache, rmq)
	chatHandler := handler.NewChatHandler(chatService)

	sessions := auth.NewHTTPVerifier(cfg.AuthURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go collectDBStats(ctx, db)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig()))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, chatCache, rmq))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/chat", func(r chi.Router) {
		apiLimiter := middleware.NewRateLimiter(ctx, 20, 50)

		r.Use(middleware.Auth(sessions))
		r.Use(apiLimiter.Middleware())

		r.Post("/init", chatHandler.InitThread)
		r.Get("/{chatID}/messages", chatHandler.GetMessages)
		r.Post("/{chatID}/messages", chatHandler.SendMessage)
		r.Put("/{chatID}/read", chatHandler.MarkRead)
		r.Get("/user/{role}/{userID}", chatHandler.GetUserThreads)
		r.Get("/seller/{sellerID}/active", chatHandler.GetActiveSellerThreads)
		r.Get("/unread/{role}/{userID}", chatHandler.GetUnreadCount)
		r.Post("/cache/clear", chatHandler.ClearCache)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chat server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()

	slog.Info("server stopped gracefully")
}

// collectDBStats publishes connection pool stats as gauges every 15 seconds
func collectDBStats(ctx context.Context, db *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			observability.DBConnectionsOpen.Set(float64(stats.OpenConnections))
			observability.DBConnectionsInUse.Set(float64(stats.InUse))
			observability.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
