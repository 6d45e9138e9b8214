package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"community-polling-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultsBody struct {
	PollID     uint  `json:"poll_id"`
	TotalVotes int64 `json:"total_votes"`
	Options    []struct {
		OptionID   uint    `json:"option_id"`
		Total      int64   `json:"total"`
		Percentage float64 `json:"percentage"`
	} `json:"options"`
	Chart *struct {
		Labels []string `json:"labels"`
		Values []int64  `json:"values"`
		Colors []string `json:"colors"`
	} `json:"chart"`
}

func TestResultsEndpoint(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) { p.AllowUnauthenticatedVoting = true })
	votePath := fmt.Sprintf("/api/polls/%d/vote", poll.ID)

	w, _ := doRequest(t, router, "POST", votePath, gin.H{"option_id": poll.Options[0].ID},
		map[string]string{"X-Session-ID": "results-a"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, router, "POST", votePath, gin.H{"option_id": poll.Options[1].ID},
		map[string]string{"X-Session-ID": "results-b"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := doRequest(t, router, "GET", fmt.Sprintf("/api/polls/%d/results", poll.ID), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body resultsBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, poll.ID, body.PollID)
	assert.Equal(t, int64(2), body.TotalVotes)
	require.Len(t, body.Options, 2)
	assert.Equal(t, int64(1), body.Options[0].Total)
	assert.InDelta(t, 50, body.Options[0].Percentage, 0.01)
	require.NotNil(t, body.Chart)
	assert.Equal(t, []string{"Yes", "No"}, body.Chart.Labels)
}

func TestResultsEndpoint_AfterVoteGate(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) {
		p.AllowUnauthenticatedVoting = true
		p.ResultsVisibility = models.ResultsAfterVote
	})
	resultsPath := fmt.Sprintf("/api/polls/%d/results", poll.ID)
	session := map[string]string{"X-Session-ID": "gate-session"}

	w, env := doRequest(t, router, "GET", resultsPath, nil, session)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, env.Error, "after you vote")

	w, _ = doRequest(t, router, "POST", fmt.Sprintf("/api/polls/%d/vote", poll.ID),
		gin.H{"option_id": poll.Options[0].ID}, session)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, router, "GET", resultsPath, nil, session)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResultsEndpoint_FreeText(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) {
		p.QuestionType = models.QuestionFreeText
		p.Options = nil
	})

	w, _ := doRequest(t, router, "POST", fmt.Sprintf("/api/polls/%d/vote", poll.ID),
		gin.H{"free_text": "Add a bike lane on Main Street"},
		map[string]string{"Authorization": bearerToken(t, 40, "user")})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := doRequest(t, router, "GET", fmt.Sprintf("/api/polls/%d/results", poll.ID), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		TotalVotes        int64 `json:"total_votes"`
		FreeTextResponses []struct {
			Text            string `json:"text"`
			IsAuthenticated bool   `json:"is_authenticated"`
		} `json:"free_text_responses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, int64(1), body.TotalVotes)
	require.Len(t, body.FreeTextResponses, 1)
	assert.Equal(t, "Add a bike lane on Main Street", body.FreeTextResponses[0].Text)
	assert.True(t, body.FreeTextResponses[0].IsAuthenticated)
}

func TestResultsEndpoint_NotFound(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	w, _ := doRequest(t, router, "GET", "/api/polls/9999/results", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
