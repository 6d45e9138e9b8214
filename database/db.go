package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"community-polling-backend/logging"
	"community-polling-backend/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database handle. Handlers and services receive it via
// constructors; the global exists for bootstrap and shutdown.
var DB *gorm.DB

// InitDB connects to the configured database and migrates the schema.
// DB_DRIVER selects mysql (default) or sqlite; sqlite is meant for local
// runs and tests.
func InitDB() error {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	cfg := &gorm.Config{
		Logger: gormLogger,
		// Duplicate-key violations must come back as gorm.ErrDuplicatedKey
		// so the voting protocol can turn the losing side of a race into a
		// conflict instead of a 500.
		TranslateError: true,
	}

	var err error
	switch getEnv("DB_DRIVER", "mysql") {
	case "sqlite":
		path := getEnv("DB_PATH", "polls.db")
		logging.Logger.Infof("using sqlite database at %s", path)
		DB, err = gorm.Open(sqlite.Open(path), cfg)
	default:
		dbUser := getEnv("DB_USER", "polluser")
		dbPassword := getEnv("DB_PASSWORD", "pollpassword")
		dbHost := getEnv("DB_HOST", "mysql")
		dbPort := getEnv("DB_PORT", "3306")
		dbName := getEnv("DB_NAME", "pollsdb")

		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbUser, dbPassword, dbHost, dbPort, dbName)

		logging.Logger.Infof("using mysql database at %s:%s/%s", dbHost, dbPort, dbName)
		DB, err = gorm.Open(mysql.Open(dsn), cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	logging.Logger.Info("database connected and migrated")
	return nil
}

// Migrate applies the schema, including the split unique vote indexes the
// voting protocol relies on.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Poll{}, &models.PollOption{}, &models.Vote{})
}

// CloseDB closes the underlying connection pool.
func CloseDB() {
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		logging.Logger.Warnf("failed to get database handle: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logging.Logger.Warnf("failed to close database: %v", err)
		return
	}
	logging.Logger.Info("database connection closed")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
