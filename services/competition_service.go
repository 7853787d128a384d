package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"survivor-pool/models"
	"survivor-pool/store"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Competition limits.
const (
	DefaultMaxLives        = 3
	MinMaxLives            = 1
	MaxMaxLives            = 10
	DefaultMaxParticipants = 20
)

// CompetitionService manages competitions, their weeks and matches.
type CompetitionService struct {
	competitions    store.CompetitionStore
	participations  store.ParticipationStore
	clock           Clock
	matchClock      MatchClock
	defaultMaxLives int
	logger          *slog.Logger
}

func NewCompetitionService(competitions store.CompetitionStore, participations store.ParticipationStore, clock Clock, syncGrace time.Duration, defaultMaxLives int, logger *slog.Logger) *CompetitionService {
	if clock == nil {
		clock = SystemClock{}
	}
	if defaultMaxLives < MinMaxLives || defaultMaxLives > MaxMaxLives {
		defaultMaxLives = DefaultMaxLives
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CompetitionService{
		competitions:    competitions,
		participations:  participations,
		clock:           clock,
		matchClock:      MatchClock{SyncGrace: syncGrace},
		defaultMaxLives: defaultMaxLives,
		logger:          logger.With("component", "competitions"),
	}
}

type MatchInput struct {
	ID              string
	Home            models.Team
	Visitor         models.Team
	ScheduledAt     time.Time
	BettingDeadline *time.Time
}

type WeekInput struct {
	Number    int
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Matches   []MatchInput
}

type CompetitionInput struct {
	Name            string
	StartDate       time.Time
	EndDate         *time.Time
	MaxLives        int
	MaxParticipants int
	Weeks           []WeekInput
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (in CompetitionInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if in.StartDate.IsZero() {
		return invalid("start_date is required")
	}
	if in.MaxLives != 0 && (in.MaxLives < MinMaxLives || in.MaxLives > MaxMaxLives) {
		return invalid("max_lives must be between %d and %d", MinMaxLives, MaxMaxLives)
	}
	if in.MaxParticipants < 0 {
		return invalid("max_participants must be non-negative")
	}
	if len(in.Weeks) == 0 {
		return invalid("at least one week is required")
	}

	numbers := make(map[int]bool, len(in.Weeks))
	matchIDs := make(map[string]bool)
	for i, w := range in.Weeks {
		n := w.Number
		if n == 0 {
			n = i + 1
		}
		if n < 1 {
			return invalid("week numbers must be at least 1")
		}
		if numbers[n] {
			return invalid("week %d is defined twice", n)
		}
		numbers[n] = true
		for _, m := range w.Matches {
			if strings.TrimSpace(m.Home.Name) == "" || strings.TrimSpace(m.Visitor.Name) == "" {
				return invalid("week %d: both teams need a name", n)
			}
			if m.ScheduledAt.IsZero() {
				return invalid("week %d: %s vs %s has no scheduled time", n, m.Home.Name, m.Visitor.Name)
			}
			if m.ID != "" {
				if matchIDs[m.ID] {
					return invalid("match id %q is used twice", m.ID)
				}
				matchIDs[m.ID] = true
			}
		}
	}
	for n := 1; n <= len(in.Weeks); n++ {
		if !numbers[n] {
			return invalid("weeks must be numbered 1 to %d", len(in.Weeks))
		}
	}
	return nil
}

// CreateCompetition stores a competition with its nested weeks and matches.
// The lowest-numbered week starts active.
func (s *CompetitionService) CreateCompetition(ctx context.Context, in CompetitionInput) (*models.Competition, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	maxLives := in.MaxLives
	if maxLives == 0 {
		maxLives = s.defaultMaxLives
	}
	maxParticipants := in.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = DefaultMaxParticipants
	}

	id := uuid.NewString()
	c := &models.Competition{
		ID:              id,
		Name:            strings.TrimSpace(in.Name),
		Slug:            slug.Make(in.Name) + "-" + id[:8],
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		MaxLives:        maxLives,
		MaxParticipants: maxParticipants,
		IsActive:        true,
		TotalWeeks:      len(in.Weeks),
	}

	for i, wi := range in.Weeks {
		number := wi.Number
		if number == 0 {
			number = i + 1
		}
		name := wi.Name
		if name == "" {
			name = fmt.Sprintf("Week %d", number)
		}
		week := models.Week{
			ID:            uuid.NewString(),
			CompetitionID: id,
			Number:        number,
			Name:          name,
			StartDate:     wi.StartDate,
			EndDate:       wi.EndDate,
		}
		for j, mi := range wi.Matches {
			matchID := mi.ID
			if matchID == "" {
				matchID = uuid.NewString()
			}
			deadline := mi.ScheduledAt
			if mi.BettingDeadline != nil {
				deadline = *mi.BettingDeadline
			}
			week.Matches = append(week.Matches, models.Match{
				ID:              matchID,
				CompetitionID:   id,
				WeekID:          week.ID,
				Week:            number,
				SortOrder:       j,
				Home:            mi.Home,
				Visitor:         mi.Visitor,
				ScheduledAt:     mi.ScheduledAt,
				BettingDeadline: deadline,
				Status:          models.MatchStatusPending,
			})
		}
		c.Weeks = append(c.Weeks, week)
	}

	sort.SliceStable(c.Weeks, func(i, j int) bool { return c.Weeks[i].Number < c.Weeks[j].Number })
	c.Weeks[0].IsActive = true
	c.CurrentWeek = c.Weeks[0].Number

	if err := s.competitions.CreateCompetition(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateID, err)
		}
		return nil, fmt.Errorf("create competition: %w", err)
	}
	s.logger.Info("competition created",
		"competition_id", c.ID,
		"name", c.Name,
		"weeks", c.TotalWeeks,
		"matches", len(c.Matches()))
	return c, nil
}

// CompetitionSummary is a competition with its participant count.
type CompetitionSummary struct {
	Competition  models.Competition
	Participants int64
}

func (s *CompetitionService) List(ctx context.Context, activeOnly bool) ([]CompetitionSummary, error) {
	comps, err := s.competitions.ListCompetitions(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]CompetitionSummary, 0, len(comps))
	for _, c := range comps {
		n, err := s.participations.CountParticipations(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, CompetitionSummary{Competition: c, Participants: n})
	}
	return out, nil
}

// Get loads a competition and repairs any match whose stored winner disagrees
// with its score.
func (s *CompetitionService) Get(ctx context.Context, id string) (*models.Competition, error) {
	c, err := s.competitions.GetCompetition(ctx, id)
	if err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}
	for wi := range c.Weeks {
		for mi := range c.Weeks[wi].Matches {
			if err := s.repair(ctx, &c.Weeks[wi].Matches[mi]); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (s *CompetitionService) repair(ctx context.Context, m *models.Match) error {
	if m.Result == nil || m.Result.Consistent() {
		return nil
	}
	fixed := models.MatchResult{
		HomeScore:    m.Result.HomeScore,
		VisitorScore: m.Result.VisitorScore,
		Winner:       models.WinnerFromScores(m.Result.HomeScore, m.Result.VisitorScore),
	}
	s.logger.Warn("repairing inconsistent match winner",
		"competition_id", m.CompetitionID,
		"match_id", m.ID,
		"stored_winner", m.Result.Winner,
		"derived_winner", fixed.Winner)
	if err := s.competitions.RepairResult(ctx, m.CompetitionID, m.ID, fixed); err != nil {
		return fmt.Errorf("repair match %s: %w", m.ID, err)
	}
	m.Result = &fixed
	return nil
}

// GetMatch returns one match, repaired like Get.
func (s *CompetitionService) GetMatch(ctx context.Context, competitionID, matchID string) (*models.Match, error) {
	c, err := s.Get(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	m := c.FindMatch(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// AdvanceWeek closes the current week and opens the next one.
func (s *CompetitionService) AdvanceWeek(ctx context.Context, competitionID string) (*models.Competition, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}
	if !c.IsActive {
		return nil, ErrCompetitionInactive
	}
	if c.CurrentWeek >= c.TotalWeeks {
		return nil, ErrLastWeek
	}
	advanced, err := s.competitions.AdvanceWeek(ctx, competitionID, c.CurrentWeek)
	if err != nil {
		return nil, fmt.Errorf("advance week: %w", err)
	}
	if !advanced {
		return nil, fmt.Errorf("%w: week changed concurrently", ErrConflict)
	}
	s.logger.Info("week advanced", "competition_id", competitionID, "from", c.CurrentWeek, "to", c.CurrentWeek+1)
	return s.Get(ctx, competitionID)
}

// GetCurrentWeekMatches returns the matches of the competition's current week.
func (s *CompetitionService) GetCurrentWeekMatches(ctx context.Context, competitionID string) ([]models.Match, error) {
	c, err := s.Get(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	var out []models.Match
	for _, m := range c.Matches() {
		if m.Week == c.CurrentWeek {
			out = append(out, m)
		}
	}
	return out, nil
}

// IsActive reports whether the competition still accepts play.
func (s *CompetitionService) IsActive(ctx context.Context, competitionID string) (bool, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return false, translate(err, ErrCompetitionNotFound)
	}
	return c.IsActive, nil
}

// MatchLiveStatus is the live view of one match.
type MatchLiveStatus struct {
	Match         models.Match
	Phase         Phase
	TimeRemaining time.Duration
	CanBet        bool
}

func (s *CompetitionService) MatchStatus(ctx context.Context, competitionID, matchID string) (*MatchLiveStatus, error) {
	m, err := s.GetMatch(ctx, competitionID, matchID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	cls := s.matchClock.ClassifyMatch(now, *m)
	return &MatchLiveStatus{
		Match:         *m,
		Phase:         cls.Phase,
		TimeRemaining: cls.TimeRemaining,
		CanBet:        CanBet(now, *m),
	}, nil
}
