package handlers

import (
	"errors"
	"net/http"

	"community-polling-backend/apperror"
	"community-polling-backend/logging"

	"github.com/gin-gonic/gin"
)

// respond writes the success envelope.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps an apperror kind to its HTTP status. Anything without
// a recognized kind is treated as a storage failure: logged with its cause
// and surfaced as a bare 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperror.ErrAuth):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, apperror.ErrAuthorization):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, apperror.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, apperror.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	default:
		logging.Logger.Errorf("request failed: %v", err)
	}

	c.JSON(status, gin.H{"success": false, "error": message})
}
