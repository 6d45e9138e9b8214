package handlers

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"community-polling-backend/auth"
	"community-polling-backend/database"
	"community-polling-backend/models"
	"community-polling-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "handler-test-secret-0123456789"

var testDBSeq atomic.Int64

// SetupTestEnvironment builds the full router over a fresh in-memory
// SQLite database, wired the same way as in production.
func SetupTestEnvironment(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	// health check and bootstrap read the global handle
	database.DB = db

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	tokens, err := auth.NewTokenService(testJWTSecret)
	require.NoError(t, err)

	pollHandler := NewPollHandler(service.NewPollService(db))
	voteHandler := NewVoteHandler(service.NewVoteService(db))
	resultsHandler := NewResultsHandler(service.NewResultsService(db))

	router := gin.New()
	api := router.Group("/api")
	api.Use(auth.OptionalAuth(tokens))
	api.Use(auth.Session())
	{
		api.GET("/health", HealthCheck)

		polls := api.Group("/polls")
		{
			polls.POST("", pollHandler.Create)
			polls.GET("", pollHandler.List)
			polls.GET("/:id", pollHandler.Get)
			polls.PUT("/:id", pollHandler.Update)
			polls.DELETE("/:id", pollHandler.Delete)
			polls.POST("/:id/options", pollHandler.AddOption)
			polls.POST("/:id/vote", voteHandler.Submit)
			polls.GET("/:id/results", resultsHandler.Get)
		}
	}

	return router, db
}

// bearerToken signs a token the router's middleware will accept.
func bearerToken(t *testing.T, userID uint, role string) string {
	t.Helper()
	tokens, err := auth.NewTokenService(testJWTSecret)
	require.NoError(t, err)
	token, err := tokens.Generate(userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

// seedPoll inserts a poll directly for endpoint tests.
func seedPoll(t *testing.T, db *gorm.DB, mutate func(*models.Poll)) *models.Poll {
	t.Helper()

	poll := models.Poll{
		Title:             "Should the night bus run on weekends?",
		PollType:          models.PollTypeSimple,
		QuestionType:      models.QuestionSingleChoice,
		Status:            models.PollStatusOpen,
		ResultsVisibility: models.ResultsAlways,
		Visibility:        models.VisibilityPublic,
		CreatorID:         1,
		Options: []models.PollOption{
			{OptionText: "Yes", Order: 0},
			{OptionText: "No", Order: 1},
		},
	}
	if mutate != nil {
		mutate(&poll)
	}
	require.NoError(t, db.Create(&poll).Error)
	return &poll
}
