package handlers

import (
	"net/http"

	"community-polling-backend/auth"
	"community-polling-backend/service"

	"github.com/gin-gonic/gin"
)

// ResultsHandler adapts the results aggregator to HTTP.
type ResultsHandler struct {
	results *service.ResultsService
}

func NewResultsHandler(results *service.ResultsService) *ResultsHandler {
	return &ResultsHandler{results: results}
}

// Get handles GET /api/polls/:id/results. The poll's visibility policy
// may reject the caller with 403.
func (h *ResultsHandler) Get(c *gin.Context) {
	pollID, err := pollIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.results.Get(c.Request.Context(), pollID, auth.CallerFromContext(c), auth.FingerprintFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}
