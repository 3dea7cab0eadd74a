package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkgate/cmd/consumers/jobs"
	"parkgate/internal/config"
	"parkgate/internal/consumers"
	"parkgate/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Get().Info("Starting consumers service...")

	// Consumers share durable subscriptions, so they need a stable client id prefix
	cfg.NATS.ClientID = "parkgate-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var reconcileJob *jobs.ReconcileJob
	if cfg.Reconcile.Enabled {
		reconcileJob = jobs.NewReconcileJob(consumerService.Services().Reconcile, cfg.Reconcile.Interval)
		reconcileJob.Start(ctx)
	}

	logger.Get().Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service...")

	if reconcileJob != nil {
		reconcileJob.Stop()
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
