package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"community-polling-backend/apperror"
	"community-polling-backend/cache"
	"community-polling-backend/logging"
	"community-polling-backend/models"

	"gorm.io/gorm"
)

// VoteService implements the vote-casting protocol: gate checks, identity
// resolution, dedup, per-question-type dispatch, and a single transaction
// for every row of one ballot.
type VoteService struct {
	db *gorm.DB
}

func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

// VoteReceipt is returned after a committed vote so the caller can render
// updated results without a second round trip.
type VoteReceipt struct {
	VoteCounts map[uint]int64 `json:"vote_counts"`
	TotalVotes int64          `json:"total_votes"`
}

// voterKey is the resolved identity of one vote attempt: either a user id
// or the anonymous (session, ip) fingerprint.
type voterKey struct {
	userID    *uint
	sessionID *string
	ipAddress *string
}

// Cast runs one vote attempt through the protocol. Checks run in order and
// the first failure wins; all inserts happen inside one transaction, so a
// ranked ballot commits fully or not at all. Concurrent duplicates that
// slip past the pre-check die on the unique indexes and come back as the
// same conflict.
func (s *VoteService) Cast(ctx context.Context, pollID uint, ballot models.Ballot, caller *models.Caller, fp models.Fingerprint) (*VoteReceipt, error) {
	if ballot == nil {
		return nil, apperror.Validation("ballot", "a ballot is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var poll models.Poll
		if err := tx.Preload("Options").First(&poll, pollID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("poll", pollID)
			}
			return apperror.Storage(err)
		}

		if !poll.IsOpen(time.Now()) {
			return apperror.Conflict("poll is closed")
		}

		if !poll.AllowUnauthenticatedVoting && caller == nil {
			return apperror.Auth("this poll requires a logged-in voter")
		}

		key, err := resolveVoterKey(caller, fp)
		if err != nil {
			return err
		}

		dup, err := s.hasExistingVote(tx, pollID, key)
		if err != nil {
			return err
		}
		if dup {
			return apperror.Conflict("already voted")
		}

		rows, err := buildVoteRows(&poll, ballot, key)
		if err != nil {
			return err
		}

		if err := tx.Create(&rows).Error; err != nil {
			if isDuplicateErr(err) {
				// lost the race against an identical concurrent attempt
				return apperror.Conflict("already voted")
			}
			return apperror.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePoll(ctx, pollID)
	logging.Logger.Debugf("vote committed on poll %d", pollID)

	counts, total, err := countByOption(s.db.WithContext(ctx), pollID)
	if err != nil {
		return nil, err
	}
	return &VoteReceipt{VoteCounts: counts, TotalVotes: total}, nil
}

func resolveVoterKey(caller *models.Caller, fp models.Fingerprint) (voterKey, error) {
	if caller != nil {
		id := caller.ID
		return voterKey{userID: &id}, nil
	}
	if fp.SessionID == "" {
		return voterKey{}, apperror.Validation("session_id", "anonymous voting requires a session id")
	}
	sid, ip := fp.SessionID, fp.IP
	return voterKey{sessionID: &sid, ipAddress: &ip}, nil
}

// hasExistingVote is the fast-path dedup check; the unique indexes are the
// authoritative one.
func (s *VoteService) hasExistingVote(tx *gorm.DB, pollID uint, key voterKey) (bool, error) {
	q := tx.Model(&models.Vote{}).Where("poll_id = ?", pollID)
	if key.userID != nil {
		q = q.Where("user_id = ?", *key.userID)
	} else {
		q = q.Where("session_id = ? AND ip_address = ?", *key.sessionID, *key.ipAddress)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperror.Storage(err)
	}
	return count > 0, nil
}

// buildVoteRows validates the ballot against the poll's question type and
// produces the ledger rows for it.
func buildVoteRows(poll *models.Poll, ballot models.Ballot, key voterKey) ([]models.Vote, error) {
	base := models.Vote{
		PollID:          poll.ID,
		UserID:          key.userID,
		IsAuthenticated: key.userID != nil,
		SessionID:       key.sessionID,
		IPAddress:       key.ipAddress,
	}

	valid := make(map[uint]bool, len(poll.Options))
	for _, opt := range poll.Options {
		valid[opt.ID] = true
	}

	switch b := ballot.(type) {
	case models.SingleChoiceBallot:
		if poll.QuestionType != models.QuestionSingleChoice {
			return nil, apperror.Validation("ballot", "this poll expects a "+string(poll.QuestionType)+" ballot")
		}
		if !valid[b.OptionID] {
			return nil, apperror.Validation("option_id", "option does not belong to this poll")
		}
		row := base
		optionID := b.OptionID
		row.OptionID = &optionID
		return []models.Vote{row}, nil

	case models.RankedChoiceBallot:
		if poll.QuestionType != models.QuestionRankedChoice {
			return nil, apperror.Validation("ballot", "this poll expects a "+string(poll.QuestionType)+" ballot")
		}
		if len(b.OptionIDs) == 0 {
			return nil, apperror.Validation("option_ids", "a ranked ballot must rank at least one option")
		}
		seen := make(map[uint]bool, len(b.OptionIDs))
		rows := make([]models.Vote, 0, len(b.OptionIDs))
		for i, optionID := range b.OptionIDs {
			if !valid[optionID] {
				return nil, apperror.Validation("option_ids", "option does not belong to this poll")
			}
			if seen[optionID] {
				return nil, apperror.Validation("option_ids", "an option cannot be ranked twice")
			}
			seen[optionID] = true

			row := base
			id := optionID
			row.OptionID = &id
			row.RankPosition = i + 1
			rows = append(rows, row)
		}
		return rows, nil

	case models.FreeTextBallot:
		if poll.QuestionType != models.QuestionFreeText {
			return nil, apperror.Validation("ballot", "this poll expects a "+string(poll.QuestionType)+" ballot")
		}
		text := strings.TrimSpace(b.Text)
		if text == "" {
			return nil, apperror.Validation("free_text", "a free-text response is required")
		}
		if len(text) > 2000 {
			return nil, apperror.Validation("free_text", "response must be at most 2000 characters")
		}
		row := base
		row.FreeTextResponse = &text
		return []models.Vote{row}, nil

	default:
		return nil, apperror.Validation("ballot", "unknown ballot type")
	}
}

// isDuplicateErr recognizes a unique-constraint violation. GORM translates
// these when the dialector supports it; the string checks cover drivers
// that do not.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
