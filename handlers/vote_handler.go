package handlers

import (
	"net/http"

	"community-polling-backend/apperror"
	"community-polling-backend/auth"
	"community-polling-backend/models"
	"community-polling-backend/service"

	"github.com/gin-gonic/gin"
)

// VoteHandler adapts the voting protocol to HTTP.
type VoteHandler struct {
	votes *service.VoteService
}

func NewVoteHandler(votes *service.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// VoteInput is the wire shape of a vote. Exactly one of the three payload
// groups must be present; the handler lifts it into the typed ballot
// variant and the protocol checks it against the poll's question type.
type VoteInput struct {
	OptionID  *uint   `json:"option_id,omitempty"`
	OptionIDs []uint  `json:"option_ids,omitempty"`
	FreeText  *string `json:"free_text,omitempty"`
}

func (in VoteInput) toBallot() (models.Ballot, error) {
	set := 0
	if in.OptionID != nil {
		set++
	}
	if in.OptionIDs != nil {
		set++
	}
	if in.FreeText != nil {
		set++
	}
	if set != 1 {
		return nil, apperror.Validation("ballot", "provide exactly one of option_id, option_ids or free_text")
	}

	switch {
	case in.OptionID != nil:
		return models.SingleChoiceBallot{OptionID: *in.OptionID}, nil
	case in.OptionIDs != nil:
		return models.RankedChoiceBallot{OptionIDs: in.OptionIDs}, nil
	default:
		return models.FreeTextBallot{Text: *in.FreeText}, nil
	}
}

// Submit handles POST /api/polls/:id/vote.
func (h *VoteHandler) Submit(c *gin.Context) {
	pollID, err := pollIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperror.Validation("body", err.Error()))
		return
	}

	ballot, err := input.toBallot()
	if err != nil {
		respondError(c, err)
		return
	}

	receipt, err := h.votes.Cast(
		c.Request.Context(),
		pollID,
		ballot,
		auth.CallerFromContext(c),
		auth.FingerprintFromContext(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, receipt)
}
