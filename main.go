package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community-polling-backend/cache"
	"community-polling-backend/database"
	"community-polling-backend/logging"
	"community-polling-backend/routes"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Logger.Debug("no .env file found, using environment")
	}

	if err := database.InitDB(); err != nil {
		logging.Logger.Fatalf("database init failed: %v", err)
	}
	logging.Logger.Info("database connected")

	if err := cache.InitRedis(); err != nil {
		logging.Logger.Warnf("redis unavailable, results caching disabled: %v", err)
	} else {
		logging.Logger.Info("redis connected")
	}
	cache.InitDistLock()

	router := routes.SetupRouter()
	srv := routes.StartServer(router)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Fatalf("forced shutdown: %v", err)
	}

	database.CloseDB()
	cache.CloseRedis()

	logging.Logger.Info("server stopped")
}
