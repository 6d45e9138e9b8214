package models

import "time"

// Caller is the identity resolved by the authentication middleware.
// A nil *Caller means the request is anonymous.
type Caller struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports whether the caller may act on polls they do not own.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == "admin"
}

// Fingerprint identifies an anonymous voter. It is a heuristic, not a
// strong identity: the session id plus the client IP.
type Fingerprint struct {
	IP        string `json:"ip"`
	SessionID string `json:"session_id"`
}

// CreateOptionInput is one option supplied at poll creation, or added
// later through the add-option operation.
type CreateOptionInput struct {
	OptionText  string `json:"option_text" binding:"required,min=1,max=1000"`
	ImageURL    string `json:"image_url" binding:"omitempty,max=500"`
	LinkURL     string `json:"link_url" binding:"omitempty,max=500"`
	DisplayName string `json:"display_name" binding:"omitempty,max=200"`
}

// CreatePollInput is the validated payload for creating a poll.
type CreatePollInput struct {
	Title                      string              `json:"title" binding:"required,min=5,max=200"`
	Description                string              `json:"description" binding:"omitempty,max=1000"`
	PollType                   PollType            `json:"poll_type" binding:"omitempty,oneof=simple complex"`
	QuestionType               QuestionType        `json:"question_type" binding:"required,oneof=single_choice ranked_choice free_text"`
	Options                    []CreateOptionInput `json:"options" binding:"omitempty,max=50,dive"`
	AllowUnauthenticatedVoting bool                `json:"allow_unauthenticated_voting"`
	AllowUserAddOptions        bool                `json:"allow_user_add_options"`
	ResultsVisibility          ResultsVisibility   `json:"results_visibility" binding:"omitempty,oneof=always after_vote after_deadline"`
	Visibility                 PollVisibility      `json:"visibility" binding:"omitempty,oneof=public private locals_only"`
	Deadline                   *time.Time          `json:"deadline,omitempty"`
	LocationID                 *uint               `json:"location_id,omitempty"`
}

// UpdatePollInput carries a partial poll update. Pointer fields
// distinguish "not provided" from zero values.
type UpdatePollInput struct {
	Title       *string         `json:"title" binding:"omitempty,min=5,max=200"`
	Description *string         `json:"description" binding:"omitempty,max=1000"`
	Status      *PollStatus     `json:"status" binding:"omitempty,oneof=open closed"`
	Visibility  *PollVisibility `json:"visibility" binding:"omitempty,oneof=public private locals_only"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
}

// Ballot is the tagged union of vote payloads. Each question type has its
// own variant so a ranked submission cannot omit its rank array and a
// free-text submission cannot smuggle in an option id.
type Ballot interface {
	isBallot()
}

// SingleChoiceBallot selects exactly one option.
type SingleChoiceBallot struct {
	OptionID uint
}

// RankedChoiceBallot lists option ids in preference order; index 0 is the
// first choice.
type RankedChoiceBallot struct {
	OptionIDs []uint
}

// FreeTextBallot carries a written response.
type FreeTextBallot struct {
	Text string
}

func (SingleChoiceBallot) isBallot() {}
func (RankedChoiceBallot) isBallot() {}
func (FreeTextBallot) isBallot()     {}
