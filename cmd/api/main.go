package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"parkgate/internal/api"
	"parkgate/internal/config"
	"parkgate/internal/logger"
	"parkgate/internal/validation"
)

func main() {
	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidate(os.Args[2:])
		return
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	server := api.NewServer(cfg)

	// Counters may have drifted while no instance was running
	server.Reconcile(context.Background())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.GetRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Get().Info("Starting server", "port", cfg.Port, "base_path", cfg.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ждем сигнал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Get().Error("Server forced to shutdown", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		logger.Get().Error("Error during cleanup", "error", err)
	}

	logger.Get().Info("Server stopped")
}

func runValidate(args []string) {
	flags := pflag.NewFlagSet("validate", pflag.ExitOnError)
	baseURL := flags.String("base-url", envOr("VALIDATE_BASE_URL", "http://localhost:3000/api/v1"), "API base URL including the base path")
	username := flags.String("username", envOr("VALIDATE_USERNAME", "admin"), "login used for the run")
	password := flags.String("password", envOr("VALIDATE_PASSWORD", "admin123"), "password for --username")
	timeout := flags.Duration("timeout", time.Minute, "overall deadline")
	_ = flags.Parse(args)

	logger.Init("info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opts := validation.Options{BaseURL: *baseURL, Username: *username, Password: *password}
	if err := validation.RunValidation(ctx, opts); err != nil {
		logger.Fatal("❌ Валидация не пройдена", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
