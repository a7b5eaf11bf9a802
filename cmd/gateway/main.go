package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"admin-realtime-service/internal/config"
	"admin-realtime-service/internal/gateway"
	"admin-realtime-service/internal/pkg/jwt"

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

	jwtManager := jwt.NewManager(cfg.JWT)
	authService, err := gateway.NewAuthService(cfg.AdminEmail, cfg.AdminPassword, jwtManager, logger.Named("auth"))
	if err != nil {
		logger.Fatal("failed to build auth service", zap.Error(err))
	}
	hub := gateway.NewHub(logger.Named("hub"))
	srv := gateway.NewServer(cfg.HTTPAddr, authService, hub, logger.Named("gateway"))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("gateway failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gateway")
	hub.Shutdown()
}
