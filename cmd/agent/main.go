package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admin-realtime-service/internal/app"
	"admin-realtime-service/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	a := app.New(cfg, logger)

	ctx := context.Background()
	a.Start(ctx)

	// Optional headless login for unattended runs.
	if !a.Session.IsAuthenticated() {
		email := os.Getenv("AGENT_EMAIL")
		password := os.Getenv("AGENT_PASSWORD")
		if email != "" && password != "" {
			if err := a.Session.Login(ctx, email, password); err != nil {
				logger.Warn("headless login failed", zap.Error(err))
			}
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down agent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.Shutdown(shutdownCtx)
}
