package routes

import (
	"context"
	"net/http"
	"os"
	"time"

	"community-polling-backend/auth"
	"community-polling-backend/cache"
	"community-polling-backend/database"
	"community-polling-backend/handlers"
	"community-polling-backend/logging"
	"community-polling-backend/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP server so callers can shut it down.
type Server struct {
	*http.Server
}

// SetupRouter builds the Gin engine with all poll, vote and results routes.
func SetupRouter() *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // restrict to the frontend origin in production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	tokens := auth.NewTokenServiceFromEnv()

	polls := service.NewPollService(database.DB)
	votes := service.NewVoteService(database.DB)
	results := service.NewResultsService(database.DB)

	pollHandler := handlers.NewPollHandler(polls)
	voteHandler := handlers.NewVoteHandler(votes)
	resultsHandler := handlers.NewResultsHandler(results)

	go startDeadlineSweeper(polls)

	api := router.Group("/api")
	api.Use(auth.OptionalAuth(tokens))
	api.Use(auth.Session())
	{
		api.GET("/health", handlers.HealthCheck)

		pollRoutes := api.Group("/polls")
		{
			pollRoutes.POST("", pollHandler.Create)
			pollRoutes.GET("", pollHandler.List)
			pollRoutes.GET("/:id", pollHandler.Get)
			pollRoutes.PUT("/:id", pollHandler.Update)
			pollRoutes.DELETE("/:id", pollHandler.Delete)
			pollRoutes.POST("/:id/options", pollHandler.AddOption)
			pollRoutes.POST("/:id/vote", handlers.VoteRateLimitMiddleware(), voteHandler.Submit)
			pollRoutes.GET("/:id/results", resultsHandler.Get)
		}
	}

	return router
}

// StartServer starts the HTTP server in the background.
func StartServer(router *gin.Engine) *Server {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8090"
	}

	addr := ":" + port

	srv := &Server{
		&http.Server{
			Addr:    addr,
			Handler: router,
		},
	}

	go func() {
		logging.Logger.Infof("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatalf("server failed: %v", err)
		}
	}()

	return srv
}

// startDeadlineSweeper periodically closes polls whose deadline has passed.
// The distributed lock keeps the sweep on a single instance when several
// replicas share the database.
func startDeadlineSweeper(polls *service.PollService) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		err := cache.WithLock("deadline-sweep", 30*time.Second, func() error {
			_, err := polls.CloseExpired(context.Background())
			return err
		})
		if err != nil && err != cache.ErrLockNotAcquired {
			logging.Logger.Warnf("deadline sweep failed: %v", err)
		}
	}
}
