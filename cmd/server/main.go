// Package main is the entry point for the ctxbridge gateway server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ctxbridge/ctxbridge/internal/config"
	"github.com/ctxbridge/ctxbridge/internal/handler"
	"github.com/ctxbridge/ctxbridge/internal/security"
)

func main() {
	// Load configuration first; the logger level comes from it.
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)

	logger.Info("starting ctxbridge gateway")
	logger.Info("configuration loaded",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("default_provider", cfg.Chat.DefaultProvider),
		slog.Int("enabled_providers", len(cfg.EnabledProviders())),
	)

	for _, p := range cfg.EnabledProviders() {
		if !p.APIKey.IsSet() {
			logger.Warn("provider has no credential; its sessions will fail at the vendor",
				slog.String("provider", p.Name),
			)
		}
	}

	// Session registry with idle eviction.
	store := handler.NewSessionStore(
		handler.WithSessionTTL(time.Duration(cfg.Chat.SessionTTLSeconds)*time.Second),
		handler.WithStoreLogger(logger),
	)

	chatHandler := handler.NewChatHandler(store, cfg, handler.WithLogger(logger))

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(handler.RecoveryMiddleware(logger))
	router.Use(handler.CORSMiddleware())
	router.Use(handler.LoggingMiddleware(logger))

	router.POST("/v1/chat", chatHandler.HandleChat)
	router.GET("/v1/sessions/:id/context", chatHandler.HandleGetContext)
	router.PUT("/v1/sessions/:id/context", chatHandler.HandleSetContext)
	router.DELETE("/v1/sessions/:id/context", chatHandler.HandleClearContext)
	router.DELETE("/v1/sessions/:id", chatHandler.HandleDeleteSession)
	router.POST("/v1/sessions/:id/transfer", chatHandler.HandleTransfer)
	router.GET("/v1/providers", chatHandler.HandleProviders)
	router.GET("/health", chatHandler.HandleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGTERM/SIGINT.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// setupLogger creates the structured logger. Every handler is wrapped in the
// redacting handler so a credential can never reach log output.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.Format == "text" {
		inner = slog.NewTextHandler(os.Stdout, opts)
	} else {
		inner = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(security.NewRedactedHandler(inner))
	slog.SetDefault(logger)

	return logger
}
