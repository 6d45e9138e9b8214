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

func TestVoteEndpoint_Anonymous(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) { p.AllowUnauthenticatedVoting = true })
	path := fmt.Sprintf("/api/polls/%d/vote", poll.ID)
	body := gin.H{"option_id": poll.Options[0].ID}
	session := map[string]string{"X-Session-ID": "endpoint-session-1"}

	w, env := doRequest(t, router, "POST", path, body, session)
	assert.Equal(t, http.StatusOK, w.Code)

	var receipt struct {
		VoteCounts map[uint]int64 `json:"vote_counts"`
		TotalVotes int64          `json:"total_votes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, int64(1), receipt.TotalVotes)
	assert.Equal(t, int64(1), receipt.VoteCounts[poll.Options[0].ID])

	// same session votes again
	w, env = doRequest(t, router, "POST", path, body, session)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)

	// a different session is a different voter
	w, _ = doRequest(t, router, "POST", path, body, map[string]string{"X-Session-ID": "endpoint-session-2"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVoteEndpoint_Authenticated(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, nil)
	path := fmt.Sprintf("/api/polls/%d/vote", poll.ID)
	body := gin.H{"option_id": poll.Options[1].ID}

	// anonymous caller on an auth-only poll
	w, _ := doRequest(t, router, "POST", path, body, map[string]string{"X-Session-ID": "s"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	headers := map[string]string{"Authorization": bearerToken(t, 30, "user")}
	w, _ = doRequest(t, router, "POST", path, body, headers)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, router, "POST", path, body, headers)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVoteEndpoint_Ranked(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) { p.QuestionType = models.QuestionRankedChoice })
	path := fmt.Sprintf("/api/polls/%d/vote", poll.ID)
	headers := map[string]string{"Authorization": bearerToken(t, 31, "user")}

	w, env := doRequest(t, router, "POST", path, gin.H{
		"option_ids": []uint{poll.Options[1].ID, poll.Options[0].ID},
	}, headers)
	assert.Equal(t, http.StatusOK, w.Code)

	var receipt struct {
		TotalVotes int64 `json:"total_votes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, int64(2), receipt.TotalVotes)
}

func TestVoteEndpoint_PayloadShape(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) { p.AllowUnauthenticatedVoting = true })
	path := fmt.Sprintf("/api/polls/%d/vote", poll.ID)
	session := map[string]string{"X-Session-ID": "payload-session"}

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "empty ballot", body: gin.H{}},
		{name: "two payloads", body: gin.H{"option_id": poll.Options[0].ID, "free_text": "also this"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, env := doRequest(t, router, "POST", path, tc.body, session)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, env.Error, "exactly one")
		})
	}
}

func TestVoteEndpoint_MismatchedBallot(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) { p.AllowUnauthenticatedVoting = true })

	w, _ := doRequest(t, router, "POST", fmt.Sprintf("/api/polls/%d/vote", poll.ID),
		gin.H{"free_text": "this poll has options"},
		map[string]string{"X-Session-ID": "mismatch-session"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteEndpoint_ClosedPoll(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) {
		p.AllowUnauthenticatedVoting = true
		p.Status = models.PollStatusClosed
	})

	w, _ := doRequest(t, router, "POST", fmt.Sprintf("/api/polls/%d/vote", poll.ID),
		gin.H{"option_id": poll.Options[0].ID},
		map[string]string{"X-Session-ID": "closed-session"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVoteEndpoint_PollNotFound(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	w, _ := doRequest(t, router, "POST", "/api/polls/9999/vote",
		gin.H{"option_id": 1},
		map[string]string{"Authorization": bearerToken(t, 32, "user")})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoteEndpoint_SessionCookieIssued(t *testing.T) {
	router, db := SetupTestEnvironment(t)

	poll := seedPoll(t, db, func(p *models.Poll) { p.AllowUnauthenticatedVoting = true })

	// no session header or cookie: the middleware issues one and the vote
	// still lands
	w, _ := doRequest(t, router, "POST", fmt.Sprintf("/api/polls/%d/vote", poll.ID),
		gin.H{"option_id": poll.Options[0].ID}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == "poll_session" && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found)
}
