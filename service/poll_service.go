package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community-polling-backend/apperror"
	"community-polling-backend/cache"
	"community-polling-backend/logging"
	"community-polling-backend/models"

	"gorm.io/gorm"
)

// PollService is the poll lifecycle manager: creation, updates, archive-or-
// delete, and voter-contributed options.
type PollService struct {
	db *gorm.DB
}

func NewPollService(db *gorm.DB) *PollService {
	return &PollService{db: db}
}

// PollView is the read model for a single poll: the poll, its options in
// display order, current per-option counts, and the caller's own votes
// when the caller could be identified.
type PollView struct {
	Poll       *models.Poll   `json:"poll"`
	VoteCounts map[uint]int64 `json:"vote_counts"`
	TotalVotes int64          `json:"total_votes"`
	MyVotes    []models.Vote  `json:"my_votes,omitempty"`
}

// Create validates and persists a poll with its options in one
// transaction.
func (s *PollService) Create(ctx context.Context, input models.CreatePollInput, caller *models.Caller) (*models.Poll, error) {
	if caller == nil {
		return nil, apperror.Auth("login required to create a poll")
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	poll := models.Poll{
		Title:                      input.Title,
		Description:                input.Description,
		PollType:                   input.PollType,
		QuestionType:               input.QuestionType,
		Status:                     models.PollStatusOpen,
		AllowUnauthenticatedVoting: input.AllowUnauthenticatedVoting,
		AllowUserAddOptions:        input.AllowUserAddOptions,
		ResultsVisibility:          input.ResultsVisibility,
		Visibility:                 input.Visibility,
		Deadline:                   input.Deadline,
		LocationID:                 input.LocationID,
		CreatorID:                  caller.ID,
	}
	if poll.PollType == "" {
		poll.PollType = models.PollTypeSimple
	}
	if poll.ResultsVisibility == "" {
		poll.ResultsVisibility = models.ResultsAlways
	}
	if poll.Visibility == "" {
		poll.Visibility = models.VisibilityPublic
	}
	for i, opt := range input.Options {
		poll.Options = append(poll.Options, models.PollOption{
			OptionText:  opt.OptionText,
			Order:       i,
			ImageURL:    opt.ImageURL,
			LinkURL:     opt.LinkURL,
			DisplayName: opt.DisplayName,
		})
	}

	if err := s.db.WithContext(ctx).Create(&poll).Error; err != nil {
		return nil, apperror.Storage(err)
	}

	logging.Logger.Infof("poll %d created by user %d (%s)", poll.ID, caller.ID, poll.QuestionType)
	return &poll, nil
}

func validateCreateInput(input models.CreatePollInput) error {
	if n := len(input.Title); n < 5 || n > 200 {
		return apperror.Validation("title", "title must be 5-200 characters")
	}
	if len(input.Description) > 1000 {
		return apperror.Validation("description", "description must be at most 1000 characters")
	}
	switch input.QuestionType {
	case models.QuestionSingleChoice, models.QuestionRankedChoice:
		if n := len(input.Options); n < 2 || n > 50 {
			return apperror.Validation("options", "a poll must have between 2 and 50 options")
		}
	case models.QuestionFreeText:
		if len(input.Options) > 0 {
			return apperror.Validation("options", "free-text polls do not take options")
		}
	default:
		return apperror.Validation("question_type", "unknown question type")
	}
	for _, opt := range input.Options {
		if n := len(opt.OptionText); n < 1 || n > 1000 {
			return apperror.Validation("options", "option text must be 1-1000 characters")
		}
	}
	if input.Deadline != nil && !input.Deadline.After(time.Now()) {
		return apperror.Validation("deadline", "deadline must be in the future")
	}
	return nil
}

// Get loads a poll with options in display order, the current counts, and
// the caller's own votes.
func (s *PollService) Get(ctx context.Context, pollID uint, caller *models.Caller, fp models.Fingerprint) (*PollView, error) {
	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}

	counts, total, err := countByOption(s.db.WithContext(ctx), pollID)
	if err != nil {
		return nil, err
	}

	view := &PollView{Poll: poll, VoteCounts: counts, TotalVotes: total}

	var mine []models.Vote
	q := s.db.WithContext(ctx).Where("poll_id = ?", pollID)
	if caller != nil {
		q = q.Where("user_id = ?", caller.ID)
	} else if fp.SessionID != "" {
		q = q.Where("session_id = ? AND ip_address = ?", fp.SessionID, fp.IP)
	} else {
		return view, nil
	}
	if err := q.Order("rank_position asc").Find(&mine).Error; err != nil {
		return nil, apperror.Storage(err)
	}
	view.MyVotes = mine

	return view, nil
}

// List returns polls newest first, optionally filtered by status.
func (s *PollService) List(ctx context.Context, status models.PollStatus) ([]models.Poll, error) {
	q := s.db.WithContext(ctx).Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("poll_options.`order` ASC")
	}).Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var polls []models.Poll
	if err := q.Find(&polls).Error; err != nil {
		return nil, apperror.Storage(err)
	}
	return polls, nil
}

// Update applies a partial patch. Only the creator or an admin may update;
// the title freezes as soon as the poll has votes.
func (s *PollService) Update(ctx context.Context, pollID uint, patch models.UpdatePollInput, caller *models.Caller) (*models.Poll, error) {
	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := canManage(poll, caller); err != nil {
		return nil, err
	}

	if patch.Title != nil && *patch.Title != poll.Title {
		voteCount, err := s.voteCount(ctx, pollID)
		if err != nil {
			return nil, err
		}
		if voteCount > 0 {
			return nil, apperror.Conflict("title cannot change once the poll has votes")
		}
		poll.Title = *patch.Title
	}
	if patch.Description != nil {
		poll.Description = *patch.Description
	}
	if patch.Status != nil {
		poll.Status = *patch.Status
	}
	if patch.Visibility != nil {
		poll.Visibility = *patch.Visibility
	}
	if patch.Deadline != nil {
		poll.Deadline = patch.Deadline
	}

	if err := s.db.WithContext(ctx).Save(poll).Error; err != nil {
		// the title pre-check races with concurrent votes; a constraint-level
		// rejection still has to come out as a conflict
		if isDuplicateErr(err) {
			return nil, apperror.Conflict("poll was modified concurrently")
		}
		return nil, apperror.Storage(err)
	}

	cache.InvalidatePoll(ctx, pollID)
	return poll, nil
}

// Delete hard-deletes a poll that has no votes; a poll with vote history
// is archived instead, keeping every vote row.
func (s *PollService) Delete(ctx context.Context, pollID uint, caller *models.Caller) (archived bool, err error) {
	poll, err := s.load(ctx, pollID)
	if err != nil {
		return false, err
	}
	if err := canManage(poll, caller); err != nil {
		return false, err
	}

	voteCount, err := s.voteCount(ctx, pollID)
	if err != nil {
		return false, err
	}

	if voteCount > 0 {
		if err := s.db.WithContext(ctx).Model(poll).Update("status", models.PollStatusArchived).Error; err != nil {
			return false, apperror.Storage(err)
		}
		cache.InvalidatePoll(ctx, pollID)
		logging.Logger.Infof("poll %d archived (%d votes retained)", pollID, voteCount)
		return true, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("poll_id = ?", pollID).Delete(&models.PollOption{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&models.Poll{}, pollID).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return false, apperror.Storage(err)
	}

	cache.InvalidatePoll(ctx, pollID)
	logging.Logger.Infof("poll %d hard-deleted", pollID)
	return false, nil
}

// AddOption appends a voter-contributed option while the poll is open and
// contribution is enabled.
func (s *PollService) AddOption(ctx context.Context, pollID uint, input models.CreateOptionInput, caller *models.Caller) (*models.PollOption, error) {
	if caller == nil {
		return nil, apperror.Auth("login required to add an option")
	}
	if n := len(input.OptionText); n < 1 || n > 1000 {
		return nil, apperror.Validation("option_text", "option text must be 1-1000 characters")
	}

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.QuestionType == models.QuestionFreeText {
		return nil, apperror.Validation("option_text", "free-text polls do not take options")
	}
	if !poll.AllowUserAddOptions {
		return nil, apperror.Authorization("this poll does not accept contributed options")
	}
	if !poll.IsOpen(time.Now()) {
		return nil, apperror.Conflict("poll is closed")
	}

	callerID := caller.ID
	option := models.PollOption{
		PollID:      pollID,
		OptionText:  input.OptionText,
		ImageURL:    input.ImageURL,
		LinkURL:     input.LinkURL,
		DisplayName: input.DisplayName,
		CreatedByID: &callerID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrder *int
		row := tx.Model(&models.PollOption{}).Where("poll_id = ?", pollID).
			Select("MAX(`order`)").Row()
		if err := row.Scan(&maxOrder); err != nil {
			return err
		}
		option.Order = 0
		if maxOrder != nil {
			option.Order = *maxOrder + 1
		}
		return tx.Create(&option).Error
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	cache.InvalidatePoll(ctx, pollID)
	return &option, nil
}

// CloseExpired flips open polls whose deadline has passed to closed.
// Invoked by the sweeper; safe to run on every instance, the redsync lock
// just keeps it to one.
func (s *PollService) CloseExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Poll{}).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", models.PollStatusOpen, time.Now()).
		Update("status", models.PollStatusClosed)
	if result.Error != nil {
		return 0, apperror.Storage(result.Error)
	}
	if result.RowsAffected > 0 {
		logging.Logger.Infof("closed %d expired polls", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

func (s *PollService) load(ctx context.Context, pollID uint) (*models.Poll, error) {
	var poll models.Poll
	err := s.db.WithContext(ctx).Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("poll_options.`order` ASC")
	}).First(&poll, pollID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("poll", pollID)
		}
		return nil, apperror.Storage(err)
	}
	return &poll, nil
}

func (s *PollService) voteCount(ctx context.Context, pollID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Vote{}).Where("poll_id = ?", pollID).Count(&count).Error; err != nil {
		return 0, apperror.Storage(err)
	}
	return count, nil
}

func canManage(poll *models.Poll, caller *models.Caller) error {
	if caller == nil {
		return apperror.Auth("login required")
	}
	if caller.ID != poll.CreatorID && !caller.IsAdmin() {
		return apperror.Authorization(fmt.Sprintf("user %d may not manage poll %d", caller.ID, poll.ID))
	}
	return nil
}
