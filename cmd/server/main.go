/*
Package main is the entry point for the chat server.

It is responsible for loading configuration, initializing the global logging system,
selecting the persistence backend, starting the websocket Hub, serving HTTP,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duochat/internal/app/chat"
	"duochat/internal/app/db"
	"duochat/internal/app/db/memdb"
	"duochat/internal/app/message"
	"duochat/internal/app/storage"
	"duochat/internal/app/user"
	"duochat/internal/configs"
	"duochat/internal/handler"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/ratelimit"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_driver", cfg.StoreDriver).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence
	var (
		users    user.Store
		messages message.Store
		pinger   handler.Pinger
		closeDB  = func() {}
	)
	switch cfg.StoreDriver {
	case configs.StoreDriverMemory:
		mem := memdb.New()
		users, messages = mem, mem
		logx.Warn("Using in-memory store, data is lost on restart")
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to database")
		}
		store := db.NewStore(pool)
		users, messages = store, store
		pinger = store
		closeDB = pool.Close
	}
	defer closeDB()

	// Optional per-user send limit
	var sendLimiter chat.Limiter
	if cfg.RedisAddr != "" {
		rdb, err := ratelimit.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis", "addr", cfg.RedisAddr)
		}
		defer rdb.Close()
		sendLimiter = ratelimit.NewLimiter(rdb, ratelimit.MessageRule(cfg.MessageRateLimit, cfg.MessageRateWindow))
		logx.Info("Send rate limiting enabled", "limit", cfg.MessageRateLimit, "window", cfg.MessageRateWindow.String())
	}

	// Optional avatar storage
	storageService, err := storage.NewStorageService(ctx, storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		PublicBaseURL:     cfg.S3PublicBaseURL,
	})
	if err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			logx.Fatal(err, "Failed to initialize storage service")
		}
		logx.Warn("S3 storage not configured, avatar uploads are disabled")
	}

	service := message.NewService(messages, users)
	hub := chat.NewHub(service, sendLimiter)

	deps := &handler.AppDeps{
		Config:   cfg,
		Users:    users,
		Messages: service,
		Hub:      hub,
		Storage:  storageService,
		DB:       pinger,
	}

	// Setup HTTP server and routes
	router := handler.Router(ctx, deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Hijacked websocket connections are not tracked by the server, so close them first.
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Hub did not drain before the shutdown deadline")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
