package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"community-polling-backend/database"
	"community-polling-backend/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// newTestDB opens a fresh in-memory SQLite database for one test. Each
// test gets its own named shared-cache database so the connection pool
// sees the same data.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// seedPoll inserts a poll directly, bypassing the service, so tests can
// shape any state they need.
func seedPoll(t *testing.T, db *gorm.DB, mutate func(*models.Poll)) *models.Poll {
	t.Helper()

	poll := models.Poll{
		Title:             "Which park needs new benches?",
		PollType:          models.PollTypeSimple,
		QuestionType:      models.QuestionSingleChoice,
		Status:            models.PollStatusOpen,
		ResultsVisibility: models.ResultsAlways,
		Visibility:        models.VisibilityPublic,
		CreatorID:         1,
		Options: []models.PollOption{
			{OptionText: "Riverside Park", Order: 0},
			{OptionText: "Hilltop Green", Order: 1},
			{OptionText: "Old Mill Commons", Order: 2},
		},
	}
	if mutate != nil {
		mutate(&poll)
	}
	require.NoError(t, db.Create(&poll).Error)
	return &poll
}

func caller(id uint) *models.Caller {
	return &models.Caller{ID: id, Role: "user"}
}

func admin(id uint) *models.Caller {
	return &models.Caller{ID: id, Role: "admin"}
}

func fingerprint(session string) models.Fingerprint {
	return models.Fingerprint{IP: "203.0.113.7", SessionID: session}
}

func futureDeadline(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}
