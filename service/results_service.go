package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"community-polling-backend/apperror"
	"community-polling-backend/cache"
	"community-polling-backend/models"

	"gorm.io/gorm"
)

// ResultsService is the read-path aggregator: per-option counts and
// percentages, authenticated/unauthenticated splits, ranked-position
// distributions, free-text listings, and the per-poll visibility gate.
type ResultsService struct {
	db *gorm.DB
}

func NewResultsService(db *gorm.DB) *ResultsService {
	return &ResultsService{db: db}
}

// OptionResult is one option's aggregate.
type OptionResult struct {
	OptionID             uint    `json:"option_id"`
	OptionText           string  `json:"option_text"`
	Order                int     `json:"order"`
	Total                int64   `json:"total"`
	AuthenticatedCount   int64   `json:"authenticated_count"`
	UnauthenticatedCount int64   `json:"unauthenticated_count"`
	Percentage           float64 `json:"percentage"`
}

// FreeTextEntry is one free-text response, newest first in listings.
type FreeTextEntry struct {
	Text            string    `json:"text"`
	IsAuthenticated bool      `json:"is_authenticated"`
	CreatedAt       time.Time `json:"created_at"`
}

// ChartData is a presentation-ready projection: labels, values and evenly
// spaced hues, all keyed off option order.
type ChartData struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
	Colors []string `json:"colors"`
}

// ResultsView is the full aggregate for one poll. RankDistribution is only
// set for ranked-choice polls, FreeTextResponses only for free-text polls.
type ResultsView struct {
	PollID            uint                   `json:"poll_id"`
	QuestionType      models.QuestionType    `json:"question_type"`
	TotalVotes        int64                  `json:"total_votes"`
	Options           []OptionResult         `json:"options,omitempty"`
	Chart             *ChartData             `json:"chart,omitempty"`
	RankDistribution  map[uint]map[int]int64 `json:"rank_distribution,omitempty"`
	FreeTextResponses []FreeTextEntry        `json:"free_text_responses,omitempty"`
}

// Get applies the poll's visibility policy and, if the caller may see
// them, returns the aggregated results. Aggregates are cached per poll;
// the gate is evaluated per caller, before the cache is consulted.
func (s *ResultsService) Get(ctx context.Context, pollID uint, caller *models.Caller, fp models.Fingerprint) (*ResultsView, error) {
	var poll models.Poll
	err := s.db.WithContext(ctx).Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("poll_options.`order` ASC")
	}).First(&poll, pollID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("poll", pollID)
		}
		return nil, apperror.Storage(err)
	}

	if err := s.CanViewResults(ctx, &poll, caller, fp); err != nil {
		return nil, err
	}

	if data, ok := cache.GetResults(ctx, pollID); ok {
		var cached ResultsView
		if json.Unmarshal(data, &cached) == nil {
			return &cached, nil
		}
	}

	view, err := s.Compute(ctx, &poll)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(view); err == nil {
		cache.SetResults(ctx, pollID, data)
	}
	return view, nil
}

// Compute builds the ResultsView straight from the ledger.
func (s *ResultsService) Compute(ctx context.Context, poll *models.Poll) (*ResultsView, error) {
	view := &ResultsView{PollID: poll.ID, QuestionType: poll.QuestionType}

	if poll.QuestionType == models.QuestionFreeText {
		entries, total, err := s.freeTextResults(ctx, poll.ID)
		if err != nil {
			return nil, err
		}
		view.FreeTextResponses = entries
		view.TotalVotes = total
		return view, nil
	}

	counts, total, err := s.computeCounts(ctx, poll.ID)
	if err != nil {
		return nil, err
	}
	view.TotalVotes = total
	view.Options = buildOptionResults(poll.Options, counts, total)
	view.Chart = buildChart(view.Options)

	if poll.QuestionType == models.QuestionRankedChoice {
		dist, err := s.rankDistribution(ctx, poll.ID)
		if err != nil {
			return nil, err
		}
		view.RankDistribution = dist
	}
	return view, nil
}

// OptionCount splits one option's votes by voter authentication.
type OptionCount struct {
	Total           int64
	Authenticated   int64
	Unauthenticated int64
}

// computeCounts groups ledger rows by option and authentication flag. For
// ranked-choice polls a row is one (voter, option, rank) entry, so totals
// count appearances across all ranks.
func (s *ResultsService) computeCounts(ctx context.Context, pollID uint) (map[uint]OptionCount, int64, error) {
	var rows []struct {
		OptionID        uint
		IsAuthenticated bool
		Count           int64
	}
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("option_id, is_authenticated, COUNT(*) as count").
		Where("poll_id = ? AND option_id IS NOT NULL", pollID).
		Group("option_id, is_authenticated").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, apperror.Storage(err)
	}

	counts := make(map[uint]OptionCount, len(rows))
	var total int64
	for _, row := range rows {
		c := counts[row.OptionID]
		c.Total += row.Count
		if row.IsAuthenticated {
			c.Authenticated += row.Count
		} else {
			c.Unauthenticated += row.Count
		}
		counts[row.OptionID] = c
		total += row.Count
	}
	return counts, total, nil
}

func buildOptionResults(options []models.PollOption, counts map[uint]OptionCount, total int64) []OptionResult {
	results := make([]OptionResult, len(options))
	for i, opt := range options {
		c := counts[opt.ID]
		results[i] = OptionResult{
			OptionID:             opt.ID,
			OptionText:           opt.OptionText,
			Order:                opt.Order,
			Total:                c.Total,
			AuthenticatedCount:   c.Authenticated,
			UnauthenticatedCount: c.Unauthenticated,
		}
		if total > 0 {
			results[i].Percentage = round2(float64(c.Total) / float64(total) * 100)
		}
	}
	return results
}

// buildChart derives labels/values/colors from option order; the hue is
// evenly spaced around the color wheel.
func buildChart(options []OptionResult) *ChartData {
	n := len(options)
	if n == 0 {
		return nil
	}
	chart := &ChartData{
		Labels: make([]string, n),
		Values: make([]int64, n),
		Colors: make([]string, n),
	}
	for i, opt := range options {
		chart.Labels[i] = opt.OptionText
		chart.Values[i] = opt.Total
		chart.Colors[i] = fmt.Sprintf("hsl(%d, 70%%, 50%%)", i*360/n)
	}
	return chart
}

// rankDistribution counts how many voters placed each option at each rank.
// No runoff tabulation happens here; that is the caller's concern.
func (s *ResultsService) rankDistribution(ctx context.Context, pollID uint) (map[uint]map[int]int64, error) {
	var rows []struct {
		OptionID     uint
		RankPosition int
		Count        int64
	}
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("option_id, rank_position, COUNT(*) as count").
		Where("poll_id = ? AND option_id IS NOT NULL AND rank_position > 0", pollID).
		Group("option_id, rank_position").
		Scan(&rows).Error
	if err != nil {
		return nil, apperror.Storage(err)
	}

	dist := make(map[uint]map[int]int64)
	for _, row := range rows {
		if dist[row.OptionID] == nil {
			dist[row.OptionID] = make(map[int]int64)
		}
		dist[row.OptionID][row.RankPosition] = row.Count
	}
	return dist, nil
}

func (s *ResultsService) freeTextResults(ctx context.Context, pollID uint) ([]FreeTextEntry, int64, error) {
	var votes []models.Vote
	err := s.db.WithContext(ctx).
		Where("poll_id = ? AND free_text_response IS NOT NULL", pollID).
		Order("created_at desc").
		Find(&votes).Error
	if err != nil {
		return nil, 0, apperror.Storage(err)
	}

	entries := make([]FreeTextEntry, len(votes))
	for i, v := range votes {
		entries[i] = FreeTextEntry{
			Text:            *v.FreeTextResponse,
			IsAuthenticated: v.IsAuthenticated,
			CreatedAt:       v.CreatedAt,
		}
	}
	return entries, int64(len(votes)), nil
}

// CanViewResults evaluates the poll's results-visibility policy for this
// caller. after_vote uses the same identity rule as voting.
func (s *ResultsService) CanViewResults(ctx context.Context, poll *models.Poll, caller *models.Caller, fp models.Fingerprint) error {
	switch poll.ResultsVisibility {
	case models.ResultsAfterVote:
		voted, err := s.hasVoted(ctx, poll.ID, caller, fp)
		if err != nil {
			return err
		}
		if !voted {
			return apperror.Authorization("results are visible after you vote")
		}
		return nil
	case models.ResultsAfterDeadline:
		// a policy of after_deadline with no deadline keeps results sealed
		if poll.Deadline == nil || time.Now().Before(*poll.Deadline) {
			return apperror.Authorization("results are not yet available")
		}
		return nil
	default:
		return nil
	}
}

func (s *ResultsService) hasVoted(ctx context.Context, pollID uint, caller *models.Caller, fp models.Fingerprint) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Vote{}).Where("poll_id = ?", pollID)
	if caller != nil {
		q = q.Where("user_id = ?", caller.ID)
	} else {
		if fp.SessionID == "" {
			return false, nil
		}
		q = q.Where("session_id = ? AND ip_address = ?", fp.SessionID, fp.IP)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperror.Storage(err)
	}
	return count > 0, nil
}

// countByOption is the shared plain-count query used by the vote receipt
// and the poll view; no percentages, just totals. The overall total counts
// every ledger row, so free-text votes are included even though they have
// no option bucket.
func countByOption(db *gorm.DB, pollID uint) (map[uint]int64, int64, error) {
	var rows []struct {
		OptionID uint
		Count    int64
	}
	err := db.Model(&models.Vote{}).
		Select("option_id, COUNT(*) as count").
		Where("poll_id = ? AND option_id IS NOT NULL", pollID).
		Group("option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, apperror.Storage(err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.OptionID] = row.Count
	}

	var total int64
	if err := db.Model(&models.Vote{}).Where("poll_id = ?", pollID).Count(&total).Error; err != nil {
		return nil, 0, apperror.Storage(err)
	}
	return counts, total, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
