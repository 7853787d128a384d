package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"survivor-pool/models"
	"survivor-pool/store"

	"github.com/google/uuid"
)

// ParticipationService handles joining, predictions and participant reads.
type ParticipationService struct {
	competitions   store.CompetitionStore
	participations store.ParticipationStore
	players        store.PlayerStore
	clock          Clock
	logger         *slog.Logger
}

func NewParticipationService(competitions store.CompetitionStore, participations store.ParticipationStore, players store.PlayerStore, clock Clock, logger *slog.Logger) *ParticipationService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ParticipationService{
		competitions:   competitions,
		participations: participations,
		players:        players,
		clock:          clock,
		logger:         logger.With("component", "participation"),
	}
}

// Join is idempotent: an existing participation is returned unchanged and
// created is false. New participations start with the player's global life
// count, or the competition's max lives when that count is unknown.
func (s *ParticipationService) Join(ctx context.Context, userID, competitionID string) (p *models.Participation, created bool, err error) {
	if existing, err := s.participations.FindParticipation(ctx, userID, competitionID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, false, translate(err, ErrCompetitionNotFound)
	}
	if !c.IsActive {
		return nil, false, ErrCompetitionInactive
	}
	if c.MaxParticipants > 0 {
		n, err := s.participations.CountParticipations(ctx, competitionID)
		if err != nil {
			return nil, false, err
		}
		if n >= int64(c.MaxParticipants) {
			return nil, false, ErrCompetitionFull
		}
	}

	lives := c.MaxLives
	player, err := s.players.GetPlayer(ctx, userID)
	switch {
	case err == nil && player.Lives != nil:
		lives = *player.Lives
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, false, fmt.Errorf("load player %s: %w", userID, err)
	}
	if lives < 0 {
		lives = 0
	}

	now := s.clock.Now()
	fresh := &models.Participation{
		ID:             uuid.NewString(),
		UserID:         userID,
		CompetitionID:  competitionID,
		LivesRemaining: lives,
		JoinedAt:       now,
		LastActivityAt: now,
		Predictions:    []models.Prediction{},
	}
	// Zero lives means eliminated, even on arrival.
	if lives == 0 {
		week := c.CurrentWeek
		fresh.IsEliminated = true
		fresh.EliminationWeek = &week
	}
	p, created, err = s.participations.CreateParticipationIfAbsent(ctx, fresh)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("player joined competition",
			"user_id", userID,
			"competition_id", competitionID,
			"lives", p.LivesRemaining,
			"eliminated", p.IsEliminated)
	}
	return p, created, nil
}

// PredictionRequest is one pick submitted by a participant.
type PredictionRequest struct {
	UserID        string
	CompetitionID string
	Week          int
	MatchID       string
	SelectedSide  models.Outcome
}

func (r PredictionRequest) validate() error {
	if r.Week < 1 {
		return ErrInvalidWeek
	}
	if r.MatchID == "" {
		return fmt.Errorf("%w: match_id is required", ErrInvalid)
	}
	if !r.SelectedSide.Valid() {
		return ErrInvalidSide
	}
	return nil
}

// SubmitPrediction appends a pick. It is rejected without any mutation when the
// participant is eliminated or out of lives, the pick already exists, or betting
// on the match has closed.
func (s *ParticipationService) SubmitPrediction(ctx context.Context, req PredictionRequest) (*models.Participation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	c, err := s.competitions.GetCompetition(ctx, req.CompetitionID)
	if err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}
	m := c.FindMatch(req.MatchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if m.Week != req.Week {
		return nil, ErrWeekMismatch
	}
	now := s.clock.Now()
	if !CanBet(now, *m) {
		return nil, ErrBettingClosed
	}

	current, err := s.participations.FindParticipation(ctx, req.UserID, req.CompetitionID)
	if err != nil {
		return nil, translate(err, ErrParticipationNotFound)
	}

	updated, err := s.participations.UpdateParticipation(ctx, current.ID, func(p *models.Participation) (bool, error) {
		if p.IsEliminated {
			return false, ErrEliminated
		}
		if p.LivesRemaining <= 0 {
			return false, ErrNoLivesRemaining
		}
		if p.HasPrediction(req.Week, req.MatchID) {
			return false, ErrDuplicatePrediction
		}
		p.Predictions = append(p.Predictions, models.Prediction{
			ID:              uuid.NewString(),
			ParticipationID: p.ID,
			Week:            req.Week,
			MatchID:         req.MatchID,
			SelectedSide:    req.SelectedSide,
			CreatedAt:       now,
		})
		p.LastActivityAt = now
		return true, nil
	})
	if err != nil {
		return nil, translate(err, ErrParticipationNotFound)
	}

	s.logger.Info("prediction submitted",
		"user_id", req.UserID,
		"competition_id", req.CompetitionID,
		"match_id", req.MatchID,
		"week", req.Week,
		"side", req.SelectedSide,
		"lives", updated.LivesRemaining)
	return updated, nil
}

// EvaluateWeekPredictions does nothing. Scoring happens once per match when the
// automation finishes it; the operation stays for API compatibility.
func (s *ParticipationService) EvaluateWeekPredictions(_ context.Context, competitionID string, week int) error {
	s.logger.Debug("evaluate week predictions is a no-op; matches are scored on finish",
		"competition_id", competitionID,
		"week", week)
	return nil
}

func (s *ParticipationService) Get(ctx context.Context, id string) (*models.Participation, error) {
	p, err := s.participations.GetParticipation(ctx, id)
	if err != nil {
		return nil, translate(err, ErrParticipationNotFound)
	}
	return p, nil
}

// Mine returns the user's participation in a competition.
func (s *ParticipationService) Mine(ctx context.Context, userID, competitionID string) (*models.Participation, error) {
	p, err := s.participations.FindParticipation(ctx, userID, competitionID)
	if err != nil {
		return nil, translate(err, ErrParticipationNotFound)
	}
	return p, nil
}

func (s *ParticipationService) ForUser(ctx context.Context, userID string) ([]models.Participation, error) {
	return s.participations.ListParticipationsByUser(ctx, userID)
}

func (s *ParticipationService) ForCompetition(ctx context.Context, competitionID string) ([]models.Participation, error) {
	if _, err := s.competitions.GetCompetition(ctx, competitionID); err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}
	return s.participations.ListParticipationsByCompetition(ctx, competitionID)
}

// Leave hard-deletes the user's participation.
func (s *ParticipationService) Leave(ctx context.Context, userID, competitionID string) error {
	p, err := s.participations.FindParticipation(ctx, userID, competitionID)
	if err != nil {
		return translate(err, ErrParticipationNotFound)
	}
	if err := s.participations.DeleteParticipation(ctx, p.ID); err != nil {
		return translate(err, ErrParticipationNotFound)
	}
	s.logger.Info("player left competition", "user_id", userID, "competition_id", competitionID)
	return nil
}

// Leaders lists non-eliminated participants by points, then lives.
func (s *ParticipationService) Leaders(ctx context.Context, competitionID string, limit int) ([]models.Participation, error) {
	if limit <= 0 {
		limit = DefaultLeadersLimit
	}
	ps, err := s.ForCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	return RankLeaders(ps, limit), nil
}

// PredictionStats is the vote split for one match.
type PredictionStats struct {
	HomeVotes         int `json:"home_votes"`
	VisitorVotes      int `json:"visitor_votes"`
	DrawVotes         int `json:"draw_votes"`
	TotalVotes        int `json:"total_votes"`
	HomePercentage    int `json:"home_percentage"`
	VisitorPercentage int `json:"visitor_percentage"`
	DrawPercentage    int `json:"draw_percentage"`
}

func percentage(n, total int) int {
	return int(math.Round(float64(n) / float64(total) * 100))
}

// MatchPredictionStats counts picks per side. With no votes it reports 50/50
// between home and visitor.
func (s *ParticipationService) MatchPredictionStats(ctx context.Context, competitionID, matchID string) (*PredictionStats, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}
	if c.FindMatch(matchID) == nil {
		return nil, ErrMatchNotFound
	}
	ps, err := s.participations.ListParticipationsByCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	var st PredictionStats
	for _, p := range ps {
		for _, pr := range p.Predictions {
			if pr.MatchID != matchID {
				continue
			}
			switch pr.SelectedSide {
			case models.OutcomeHome:
				st.HomeVotes++
			case models.OutcomeVisitor:
				st.VisitorVotes++
			case models.OutcomeDraw:
				st.DrawVotes++
			}
		}
	}
	st.TotalVotes = st.HomeVotes + st.VisitorVotes + st.DrawVotes
	if st.TotalVotes == 0 {
		st.HomePercentage, st.VisitorPercentage = 50, 50
		return &st, nil
	}
	st.HomePercentage = percentage(st.HomeVotes, st.TotalVotes)
	st.VisitorPercentage = percentage(st.VisitorVotes, st.TotalVotes)
	st.DrawPercentage = percentage(st.DrawVotes, st.TotalVotes)
	return &st, nil
}

// ResetLives is the admin override. It is the only way an eliminated
// participant comes back: lives > 0 clears the elimination.
func (s *ParticipationService) ResetLives(ctx context.Context, participationID string, lives int) (*models.Participation, error) {
	if lives < 0 {
		return nil, fmt.Errorf("%w: lives must be non-negative", ErrInvalid)
	}
	current, err := s.participations.GetParticipation(ctx, participationID)
	if err != nil {
		return nil, translate(err, ErrParticipationNotFound)
	}
	c, err := s.competitions.GetCompetition(ctx, current.CompetitionID)
	if err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}

	now := s.clock.Now()
	p, err := s.participations.UpdateParticipation(ctx, participationID, func(p *models.Participation) (bool, error) {
		p.LivesRemaining = lives
		if lives > 0 {
			p.IsEliminated = false
			p.EliminationWeek = nil
		} else if !p.IsEliminated {
			week := c.CurrentWeek
			p.IsEliminated = true
			p.EliminationWeek = &week
		}
		p.LastActivityAt = now
		return true, nil
	})
	if err != nil {
		return nil, translate(err, ErrParticipationNotFound)
	}
	s.logger.Warn("lives reset by admin",
		"participation_id", participationID,
		"user_id", p.UserID,
		"lives", lives,
		"eliminated", p.IsEliminated)
	return p, nil
}
