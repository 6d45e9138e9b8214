package models

import (
	"time"

	"gorm.io/gorm"
)

// PollType affects how a poll's options are rendered, not how voting works.
type PollType string

const (
	PollTypeSimple  PollType = "simple"
	PollTypeComplex PollType = "complex"
)

// QuestionType is the ballot shape of a poll. It determines both vote
// validation and the aggregation strategy on the results path.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionRankedChoice QuestionType = "ranked_choice"
	QuestionFreeText     QuestionType = "free_text"
)

// PollStatus tracks the poll lifecycle. Archived is reached only through
// delete-with-votes: vote history is never silently discarded.
type PollStatus string

const (
	PollStatusOpen     PollStatus = "open"
	PollStatusClosed   PollStatus = "closed"
	PollStatusArchived PollStatus = "archived"
)

// ResultsVisibility controls when a caller may see aggregated results.
type ResultsVisibility string

const (
	ResultsAlways        ResultsVisibility = "always"
	ResultsAfterVote     ResultsVisibility = "after_vote"
	ResultsAfterDeadline ResultsVisibility = "after_deadline"
)

// PollVisibility controls who can discover the poll at all.
type PollVisibility string

const (
	VisibilityPublic     PollVisibility = "public"
	VisibilityPrivate    PollVisibility = "private"
	VisibilityLocalsOnly PollVisibility = "locals_only"
)

// Poll is a question put to the community.
type Poll struct {
	gorm.Model
	Title                      string            `gorm:"size:200;not null" json:"title"`
	Description                string            `gorm:"size:1000" json:"description"`
	PollType                   PollType          `gorm:"size:16;not null;default:simple" json:"poll_type"`
	QuestionType               QuestionType      `gorm:"size:16;not null;default:single_choice" json:"question_type"`
	Status                     PollStatus        `gorm:"size:16;not null;default:open;index" json:"status"`
	AllowUnauthenticatedVoting bool              `gorm:"not null;default:false" json:"allow_unauthenticated_voting"`
	AllowUserAddOptions        bool              `gorm:"not null;default:false" json:"allow_user_add_options"`
	ResultsVisibility          ResultsVisibility `gorm:"size:16;not null;default:always" json:"results_visibility"`
	Visibility                 PollVisibility    `gorm:"size:16;not null;default:public" json:"visibility"`
	Deadline                   *time.Time        `json:"deadline,omitempty"`
	LocationID                 *uint             `gorm:"index" json:"location_id,omitempty"`
	CreatorID                  uint              `gorm:"not null;index" json:"creator_id"`
	Options                    []PollOption      `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"options"`
}

// IsOpen reports whether the poll accepts votes at the given instant.
// A poll past its deadline counts as closed even if the expiration
// sweeper has not flipped its status yet.
func (p *Poll) IsOpen(now time.Time) bool {
	if p.Status != PollStatusOpen {
		return false
	}
	if p.Deadline != nil && now.After(*p.Deadline) {
		return false
	}
	return true
}

// PollOption is one answer a voter can pick. Owned by its poll and
// cascade-deleted with it.
type PollOption struct {
	gorm.Model
	PollID      uint   `gorm:"not null;index" json:"poll_id"`
	OptionText  string `gorm:"size:1000;not null" json:"option_text"`
	Order       int    `gorm:"not null;default:0" json:"order"`
	ImageURL    string `gorm:"size:500" json:"image_url,omitempty"`
	LinkURL     string `gorm:"size:500" json:"link_url,omitempty"`
	DisplayName string `gorm:"size:200" json:"display_name,omitempty"`
	CreatedByID *uint  `json:"created_by_id,omitempty"`
}

// Vote is one row of the vote ledger. Exactly one of OptionID or
// FreeTextResponse is set, matching the parent poll's question type.
// A ranked-choice ballot produces one row per ranked option.
//
// Dedup is enforced by two unique indexes, split between authenticated and
// anonymous voters because NULL columns never collide in a SQL unique
// index: (poll_id, user_id, rank_position) catches authenticated repeats
// and ignores anonymous rows (NULL user_id), while
// (poll_id, session_id, ip_address, rank_position) catches anonymous
// repeats and ignores authenticated rows (NULL session_id). RankPosition
// is 0 for anything that is not a ranked-choice row, so single-choice and
// free-text repeats collide on the slot-0 entry.
type Vote struct {
	gorm.Model
	PollID           uint    `gorm:"not null;index;uniqueIndex:idx_vote_user,priority:1;uniqueIndex:idx_vote_anon,priority:1" json:"poll_id"`
	OptionID         *uint   `gorm:"index" json:"option_id,omitempty"`
	UserID           *uint   `gorm:"uniqueIndex:idx_vote_user,priority:2" json:"user_id,omitempty"`
	IsAuthenticated  bool    `gorm:"not null;default:false" json:"is_authenticated"`
	RankPosition     int     `gorm:"not null;default:0;uniqueIndex:idx_vote_user,priority:3;uniqueIndex:idx_vote_anon,priority:4" json:"rank_position,omitempty"`
	FreeTextResponse *string `gorm:"size:2000" json:"free_text_response,omitempty"`
	SessionID        *string `gorm:"size:64;uniqueIndex:idx_vote_anon,priority:2" json:"-"`
	IPAddress        *string `gorm:"size:45;uniqueIndex:idx_vote_anon,priority:3" json:"-"`
}
