package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"survivor-pool/metrics"
	"survivor-pool/models"
	"survivor-pool/store"
)

// DefaultMatchDuration is how long a match stays in progress before it is finished.
const DefaultMatchDuration = 2 * time.Minute

const (
	resultGenerated = "generated"
	resultSupplied  = "supplied"
)

// AutomationOptions wires an AutomationService.
type AutomationOptions struct {
	Results  ResultSource
	Notifier Notifier
	// Archiver is optional.
	Archiver StandingsArchiver
	Clock    Clock
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	MatchDuration    time.Duration
	SyncGrace        time.Duration
	PointsPerCorrect int
}

// AutomationService owns match lifecycle transitions and triggers scoring.
// Scoring for a match runs at most once; the persisted predictions_processed
// claim is the only guard.
type AutomationService struct {
	competitions   store.CompetitionStore
	participations store.ParticipationStore

	results       ResultSource
	notifier      Notifier
	archiver      StandingsArchiver
	clock         Clock
	matchClock    MatchClock
	scorer        Scorer
	matchDuration time.Duration
	metrics       *metrics.Recorder
	logger        *slog.Logger
}

func NewAutomationService(competitions store.CompetitionStore, participations store.ParticipationStore, opts AutomationOptions) *AutomationService {
	if opts.Results == nil {
		opts.Results = NewRandomResultGenerator(0)
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.MatchDuration <= 0 {
		opts.MatchDuration = DefaultMatchDuration
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AutomationService{
		competitions:   competitions,
		participations: participations,
		results:        opts.Results,
		notifier:       opts.Notifier,
		archiver:       opts.Archiver,
		clock:          opts.Clock,
		matchClock:     MatchClock{SyncGrace: opts.SyncGrace},
		scorer:         Scorer{PointsPerCorrect: opts.PointsPerCorrect},
		matchDuration:  opts.MatchDuration,
		metrics:        opts.Metrics,
		logger:         opts.Logger.With("component", "match_automation"),
	}
}

// TickReport summarizes one pass over the active competitions.
type TickReport struct {
	Competitions int
	Failed       int
	Started      int
	Finished     int
	Completed    int
}

// competitionReport is the per-competition part of a TickReport.
type competitionReport struct {
	started   int
	finished  int
	completed bool
}

// Tick runs one automation pass. A failing competition is logged and skipped;
// the returned error only reports that the active competitions could not be listed.
func (s *AutomationService) Tick(ctx context.Context) (TickReport, error) {
	return s.run(ctx, "tick")
}

// Resync is the boot-time pass. It is a tick whose log lines are labelled
// separately so overdue matches healed at startup are easy to spot.
func (s *AutomationService) Resync(ctx context.Context) (TickReport, error) {
	s.logger.Info("resyncing matches on boot")
	report, err := s.run(ctx, "resync")
	if err == nil {
		s.logger.Info("resync complete",
			"competitions", report.Competitions,
			"started", report.Started,
			"finished", report.Finished,
			"completed", report.Completed,
			"failed", report.Failed)
	}
	return report, err
}

func (s *AutomationService) run(ctx context.Context, mode string) (TickReport, error) {
	began := time.Now()
	var report TickReport

	comps, err := s.competitions.ListCompetitions(ctx, true)
	if err != nil {
		s.logger.Error("failed to list active competitions", "mode", mode, "error", err)
		return report, fmt.Errorf("list active competitions: %w", err)
	}
	report.Competitions = len(comps)

	for i := range comps {
		if ctx.Err() != nil {
			break
		}
		cr, err := s.safeProcess(ctx, &comps[i])
		report.Started += cr.started
		report.Finished += cr.finished
		if cr.completed {
			report.Completed++
		}
		if err != nil {
			report.Failed++
			s.logger.Error("competition tick aborted",
				"mode", mode,
				"competition_id", comps[i].ID,
				"competition", comps[i].Name,
				"error", err)
		}
	}

	s.metrics.ObserveTick(time.Since(began), report.Failed)
	return report, nil
}

// safeProcess keeps a panic in one competition from reaching the scheduler.
func (s *AutomationService) safeProcess(ctx context.Context, c *models.Competition) (cr competitionReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing competition: %v", r)
		}
	}()
	return s.processCompetition(ctx, c)
}

func (s *AutomationService) processCompetition(ctx context.Context, c *models.Competition) (competitionReport, error) {
	var cr competitionReport
	finishedAny := false

	for _, m := range c.Matches() {
		now := s.clock.Now()
		cls := s.matchClock.ClassifyMatch(now, m)

		switch cls.Phase {
		case PhaseUpcoming, PhaseFinished:
			if cls.Phase == PhaseFinished && !m.PredictionsProcessed {
				// Finished but never scored: resume with the stored result.
				if err := s.finish(ctx, c, m, nil, resultGenerated); err != nil {
					return cr, err
				}
				finishedAny = true
			}

		case PhaseDueToStart:
			started, err := s.start(ctx, c, m, now)
			if err != nil {
				return cr, err
			}
			if started {
				cr.started++
			}

		case PhaseInProgress:
			since := m.ScheduledAt
			if m.StartedAt != nil {
				since = *m.StartedAt
			}
			if now.Sub(since) < s.matchDuration {
				continue
			}
			if err := s.finish(ctx, c, m, nil, resultGenerated); err != nil {
				return cr, err
			}
			cr.finished++
			finishedAny = true

		case PhaseDueForSync:
			s.logger.Warn("match overdue, forcing finish",
				"competition_id", c.ID,
				"match_id", m.ID,
				"match", m.Label(),
				"scheduled_at", m.ScheduledAt)
			if m.Status == models.MatchStatusPending {
				started, err := s.start(ctx, c, m, now)
				if err != nil {
					return cr, err
				}
				if started {
					cr.started++
				}
			}
			if err := s.finish(ctx, c, m, nil, resultGenerated); err != nil {
				return cr, err
			}
			cr.finished++
			finishedAny = true
		}
	}

	// A previous tick may have finished the last match and then failed.
	if finishedAny || c.AllMatchesFinished() {
		completed, err := s.checkCompletion(ctx, c.ID)
		if err != nil {
			return cr, err
		}
		cr.completed = completed
	}
	return cr, nil
}

func (s *AutomationService) start(ctx context.Context, c *models.Competition, m models.Match, now time.Time) (bool, error) {
	started, err := s.competitions.StartMatch(ctx, c.ID, m.ID, now)
	if err != nil {
		return false, fmt.Errorf("start match %s: %w", m.ID, err)
	}
	if started {
		s.metrics.MatchStarted()
		s.logger.Info("match started",
			"competition_id", c.ID,
			"match_id", m.ID,
			"match", m.Label(),
			"week", m.Week)
	}
	return started, nil
}

// finish records a result (supplied, or generated when nil) and scores it.
// An already stored result always wins over the new one.
func (s *AutomationService) finish(ctx context.Context, c *models.Competition, m models.Match, supplied *models.MatchResult, source string) error {
	var result models.MatchResult
	switch {
	case m.Result != nil && m.Finished():
		result = *m.Result
	case supplied != nil:
		result = *supplied
	default:
		r, err := s.results.ResultFor(ctx, m)
		if err != nil {
			return fmt.Errorf("generate result for match %s: %w", m.ID, err)
		}
		result = r
	}

	wasFinished := m.Finished()
	stored, err := s.competitions.RecordResult(ctx, c.ID, m.ID, result, s.clock.Now())
	if err != nil {
		return fmt.Errorf("record result for match %s: %w", m.ID, err)
	}
	stored, err = s.repairResult(ctx, c.ID, stored)
	if err != nil {
		return err
	}
	if !wasFinished {
		s.metrics.MatchFinished(source)
		s.logger.Info("match finished",
			"competition_id", c.ID,
			"match_id", stored.ID,
			"match", stored.Label(),
			"home_score", stored.Result.HomeScore,
			"visitor_score", stored.Result.VisitorScore,
			"winner", stored.Result.Winner)
	}

	return s.scoreMatch(ctx, c, *stored)
}

// repairResult corrects a stored winner that disagrees with the scoreline.
func (s *AutomationService) repairResult(ctx context.Context, competitionID string, m *models.Match) (*models.Match, error) {
	if m.Result == nil || m.Result.Consistent() {
		return m, nil
	}
	fixed, err := models.NewMatchResult(m.Result.HomeScore, m.Result.VisitorScore)
	if err != nil {
		return nil, fmt.Errorf("match %s has an unusable result: %w", m.ID, err)
	}
	s.logger.Warn("repairing inconsistent match winner",
		"competition_id", competitionID,
		"match_id", m.ID,
		"stored_winner", m.Result.Winner,
		"derived_winner", fixed.Winner)
	if err := s.competitions.RepairResult(ctx, competitionID, m.ID, fixed); err != nil {
		return nil, fmt.Errorf("repair result for match %s: %w", m.ID, err)
	}
	m.Result = &fixed
	return m, nil
}

// scoreMatch claims the match and applies scoring to every participant. When
// the claim is lost the match was already scored and nothing happens.
func (s *AutomationService) scoreMatch(ctx context.Context, c *models.Competition, m models.Match) error {
	if m.Result == nil {
		return fmt.Errorf("match %s: %w", m.ID, ErrMatchNotFinished)
	}

	claimed, err := s.competitions.ClaimScoring(ctx, c.ID, m.ID)
	if err != nil {
		return fmt.Errorf("claim scoring for match %s: %w", m.ID, err)
	}
	if !claimed {
		s.logger.Debug("match already scored", "competition_id", c.ID, "match_id", m.ID)
		return nil
	}

	participations, err := s.participations.ListParticipationsByCompetition(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list participations for competition %s: %w", c.ID, err)
	}

	result := *m.Result
	var (
		errs                []error
		userIDs             = make([]string, 0, len(participations))
		correct, incorrect  int
		eliminated, penalty int
	)
	for _, p := range participations {
		userIDs = append(userIDs, p.UserID)

		var outcome ScoreOutcome
		_, err := s.participations.UpdateParticipation(ctx, p.ID, func(fresh *models.Participation) (bool, error) {
			o, changed := s.scorer.Score(fresh, m, result, s.clock.Now())
			outcome = o
			return changed, nil
		})
		if err != nil {
			s.logger.Error("failed to score participation",
				"competition_id", c.ID,
				"match_id", m.ID,
				"participation_id", p.ID,
				"user_id", p.UserID,
				"error", err)
			errs = append(errs, fmt.Errorf("participation %s: %w", p.ID, err))
			continue
		}
		if outcome.Skipped || !outcome.Predicted() {
			continue
		}

		correct += outcome.CorrectCount
		incorrect += len(outcome.Verdicts) - outcome.CorrectCount
		if outcome.LifeLost {
			penalty++
			s.metrics.LifeLost(outcome.Eliminated)
		}

		if s.notifier == nil {
			continue
		}
		livesLost := 0
		if outcome.LifeLost {
			livesLost = 1
		}
		s.notifier.PredictionResult(ctx, PredictionResultEvent{
			UserID:          p.UserID,
			CompetitionID:   c.ID,
			CompetitionName: c.Name,
			Match:           m,
			Correct:         outcome.CorrectCount > 0,
			PointsGained:    outcome.PointsAwarded,
			LivesLost:       livesLost,
		})
		if outcome.Eliminated {
			eliminated++
			s.notifier.Elimination(ctx, EliminationEvent{
				UserID:          p.UserID,
				CompetitionID:   c.ID,
				CompetitionName: c.Name,
				Week:            outcome.EliminationWeek,
			})
		}
	}

	if s.notifier != nil && len(userIDs) > 0 {
		s.notifier.MatchResult(ctx, MatchResultEvent{
			UserIDs:         userIDs,
			CompetitionID:   c.ID,
			CompetitionName: c.Name,
			Match:           m,
			Result:          result,
		})
	}

	s.metrics.PredictionsScored(correct, incorrect)
	s.logger.Info("match scored",
		"competition_id", c.ID,
		"match_id", m.ID,
		"participants", len(participations),
		"correct", correct,
		"incorrect", incorrect,
		"lives_lost", penalty,
		"eliminated", eliminated,
		"failed", len(errs))

	return errors.Join(errs...)
}

// checkCompletion deactivates the competition once every match is finished.
func (s *AutomationService) checkCompletion(ctx context.Context, competitionID string) (bool, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return false, fmt.Errorf("reload competition %s: %w", competitionID, err)
	}
	if !c.IsActive || !c.AllMatchesFinished() {
		return false, nil
	}

	participations, err := s.participations.ListParticipationsByCompetition(ctx, competitionID)
	if err != nil {
		return false, fmt.Errorf("list participations for competition %s: %w", competitionID, err)
	}

	var winnerID *string
	if w := DetermineWinner(participations); w != nil {
		id := w.UserID
		winnerID = &id
	}

	now := s.clock.Now()
	completed, err := s.competitions.CompleteCompetition(ctx, competitionID, winnerID, now)
	if err != nil {
		return false, fmt.Errorf("complete competition %s: %w", competitionID, err)
	}
	if !completed {
		return false, nil
	}

	s.metrics.CompetitionCompleted()
	winner := "none"
	if winnerID != nil {
		winner = *winnerID
	}
	s.logger.Info("competition completed",
		"competition_id", competitionID,
		"competition", c.Name,
		"winner_user_id", winner,
		"participants", len(participations))

	if s.archiver != nil {
		c.IsActive = false
		c.WinnerUserID = winnerID
		c.CompletedAt = &now
		key, err := s.archiver.ArchiveStandings(ctx, c, FinalStandings(participations))
		if err != nil {
			s.logger.Error("failed to archive standings", "competition_id", competitionID, "error", err)
		} else {
			s.logger.Info("standings archived", "competition_id", competitionID, "location", key)
		}
	}
	return true, nil
}

// FinishMatch finishes a match on demand. A supplied result has its winner
// re-derived from the scores; without one a result is generated. Finishing a
// match that was already scored changes nothing.
func (s *AutomationService) FinishMatch(ctx context.Context, competitionID, matchID string, supplied *models.MatchResult) (*models.Match, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}
	m := c.FindMatch(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if m.PredictionsProcessed {
		return m, nil
	}

	source := resultGenerated
	if supplied != nil {
		r, err := models.NewMatchResult(supplied.HomeScore, supplied.VisitorScore)
		if err != nil {
			return nil, ErrInvalidScore
		}
		supplied = &r
		source = resultSupplied
	}

	if err := s.finish(ctx, c, *m, supplied, source); err != nil {
		return nil, err
	}
	if _, err := s.checkCompletion(ctx, competitionID); err != nil {
		s.logger.Error("completion check failed", "competition_id", competitionID, "error", err)
	}

	fresh, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, translate(err, ErrCompetitionNotFound)
	}
	if fm := fresh.FindMatch(matchID); fm != nil {
		return fm, nil
	}
	return nil, ErrMatchNotFound
}

// StatusSummary counts matches per stored status for one competition.
type StatusSummary struct {
	CompetitionID string
	Name          string
	Pending       int
	InProgress    int
	Finished      int
	NextKickoff   *time.Time
}

// StatusSummaries reports every active competition's match counts.
func (s *AutomationService) StatusSummaries(ctx context.Context) ([]StatusSummary, error) {
	comps, err := s.competitions.ListCompetitions(ctx, true)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]StatusSummary, 0, len(comps))
	for i := range comps {
		sum := StatusSummary{CompetitionID: comps[i].ID, Name: comps[i].Name}
		for _, m := range comps[i].Matches() {
			switch m.Status {
			case models.MatchStatusPending:
				sum.Pending++
				if m.ScheduledAt.After(now) && (sum.NextKickoff == nil || m.ScheduledAt.Before(*sum.NextKickoff)) {
					at := m.ScheduledAt
					sum.NextKickoff = &at
				}
			case models.MatchStatusInProgress:
				sum.InProgress++
			case models.MatchStatusFinished:
				sum.Finished++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// LogMatchStatus writes one line per active competition.
func (s *AutomationService) LogMatchStatus(ctx context.Context) {
	sums, err := s.StatusSummaries(ctx)
	if err != nil {
		s.logger.Error("failed to build match status", "error", err)
		return
	}
	now := s.clock.Now()
	for _, sum := range sums {
		attrs := []any{
			"competition_id", sum.CompetitionID,
			"competition", sum.Name,
			"pending", sum.Pending,
			"in_progress", sum.InProgress,
			"finished", sum.Finished,
		}
		if sum.NextKickoff != nil {
			attrs = append(attrs, "next_kickoff_in", sum.NextKickoff.Sub(now).Round(time.Second))
		}
		s.logger.Info("match status", attrs...)
	}
}
