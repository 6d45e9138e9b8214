package handlers

import (
	"net/http"
	"strconv"

	"community-polling-backend/apperror"
	"community-polling-backend/auth"
	"community-polling-backend/models"
	"community-polling-backend/service"

	"github.com/gin-gonic/gin"
)

// PollHandler adapts the poll lifecycle manager to HTTP.
type PollHandler struct {
	polls *service.PollService
}

func NewPollHandler(polls *service.PollService) *PollHandler {
	return &PollHandler{polls: polls}
}

func pollIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperror.Validation("id", "invalid poll id format")
	}
	return uint(id), nil
}

// Create handles POST /api/polls.
func (h *PollHandler) Create(c *gin.Context) {
	var input models.CreatePollInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperror.Validation("body", err.Error()))
		return
	}

	poll, err := h.polls.Create(c.Request.Context(), input, auth.CallerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, poll)
}

// List handles GET /api/polls with an optional ?status= filter.
func (h *PollHandler) List(c *gin.Context) {
	status := models.PollStatus(c.Query("status"))
	switch status {
	case "", models.PollStatusOpen, models.PollStatusClosed, models.PollStatusArchived:
	default:
		respondError(c, apperror.Validation("status", "unknown status filter"))
		return
	}

	polls, err := h.polls.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, polls)
}

// Get handles GET /api/polls/:id.
func (h *PollHandler) Get(c *gin.Context) {
	pollID, err := pollIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.polls.Get(c.Request.Context(), pollID, auth.CallerFromContext(c), auth.FingerprintFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

// Update handles PATCH /api/polls/:id.
func (h *PollHandler) Update(c *gin.Context) {
	pollID, err := pollIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var patch models.UpdatePollInput
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, apperror.Validation("body", err.Error()))
		return
	}

	poll, err := h.polls.Update(c.Request.Context(), pollID, patch, auth.CallerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, poll)
}

// Delete handles DELETE /api/polls/:id. A poll with votes is archived;
// a voteless poll is removed outright.
func (h *PollHandler) Delete(c *gin.Context) {
	pollID, err := pollIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	archived, err := h.polls.Delete(c.Request.Context(), pollID, auth.CallerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"archived": archived})
}

// AddOption handles POST /api/polls/:id/options.
func (h *PollHandler) AddOption(c *gin.Context) {
	pollID, err := pollIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input models.CreateOptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperror.Validation("body", err.Error()))
		return
	}

	option, err := h.polls.AddOption(c.Request.Context(), pollID, input, auth.CallerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, option)
}
