package handlers

import (
	"net/http"

	"community-polling-backend/cache"
	"community-polling-backend/database"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports db and redis reachability. Redis being down is not
// fatal: the service runs cache-less.
func HealthCheck(c *gin.Context) {
	dbStatus := "ok"
	if database.DB == nil {
		dbStatus = "down"
	} else if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "down"
	}

	redisStatus := "ok"
	if err := cache.Ping(c.Request.Context()); err != nil {
		redisStatus = "down"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
