package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"survivor-pool/models"
	"survivor-pool/store"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 14, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu           sync.Mutex
	predictions  []PredictionResultEvent
	results      []MatchResultEvent
	eliminations []EliminationEvent
}

func (n *recordingNotifier) PredictionResult(_ context.Context, ev PredictionResultEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.predictions = append(n.predictions, ev)
}

func (n *recordingNotifier) MatchResult(_ context.Context, ev MatchResultEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, ev)
}

func (n *recordingNotifier) Elimination(_ context.Context, ev EliminationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.eliminations = append(n.eliminations, ev)
}

func (n *recordingNotifier) predictionFor(userID string) (PredictionResultEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ev := range n.predictions {
		if ev.UserID == userID {
			return ev, true
		}
	}
	return PredictionResultEvent{}, false
}

type recordingArchiver struct {
	competition *models.Competition
	standings   []Standing
}

func (a *recordingArchiver) ArchiveStandings(_ context.Context, c *models.Competition, s []Standing) (string, error) {
	a.competition = c
	a.standings = s
	return "competitions/" + c.ID + "/standings.json", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store          *store.MemoryStore
	clock          *fakeClock
	notifier       *recordingNotifier
	archiver       *recordingArchiver
	competitions   *CompetitionService
	participations *ParticipationService
	automation     *AutomationService
}

func newTestEnv(t *testing.T, results ResultSource) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	clock := newFakeClock(t0)
	notifier := &recordingNotifier{}
	archiver := &recordingArchiver{}
	logger := discardLogger()
	if results == nil {
		results = FixedResultSource{HomeScore: 2, VisitorScore: 0}
	}
	return &testEnv{
		store:          st,
		clock:          clock,
		notifier:       notifier,
		archiver:       archiver,
		competitions:   NewCompetitionService(st, st, clock, 3*time.Minute, DefaultMaxLives, logger),
		participations: NewParticipationService(st, st, st, clock, logger),
		automation: NewAutomationService(st, st, AutomationOptions{
			Results:       results,
			Notifier:      notifier,
			Archiver:      archiver,
			Clock:         clock,
			Logger:        logger,
			MatchDuration: 2 * time.Minute,
			SyncGrace:     3 * time.Minute,
		}),
	}
}

func fixture(id, home, visitor string, at time.Time) MatchInput {
	return MatchInput{
		ID:          id,
		Home:        models.Team{Name: home},
		Visitor:     models.Team{Name: visitor},
		ScheduledAt: at,
	}
}

// createCompetition stores a competition with one week per argument.
func (e *testEnv) createCompetition(t *testing.T, weeks ...[]MatchInput) *models.Competition {
	t.Helper()
	in := CompetitionInput{Name: "Copa Test", StartDate: t0}
	for i, ms := range weeks {
		in.Weeks = append(in.Weeks, WeekInput{Number: i + 1, Matches: ms})
	}
	c, err := e.competitions.CreateCompetition(context.Background(), in)
	require.NoError(t, err)
	return c
}

func (e *testEnv) setLives(t *testing.T, userID string, lives int) {
	t.Helper()
	_, err := e.store.UpsertPlayers(context.Background(), []models.Player{{ID: userID, Username: userID, Lives: &lives, IsActive: true}})
	require.NoError(t, err)
}

func (e *testEnv) join(t *testing.T, userID, competitionID string) *models.Participation {
	t.Helper()
	p, _, err := e.participations.Join(context.Background(), userID, competitionID)
	require.NoError(t, err)
	return p
}

func (e *testEnv) predict(t *testing.T, userID, competitionID, matchID string, week int, side models.Outcome) {
	t.Helper()
	_, err := e.participations.SubmitPrediction(context.Background(), PredictionRequest{
		UserID:        userID,
		CompetitionID: competitionID,
		Week:          week,
		MatchID:       matchID,
		SelectedSide:  side,
	})
	require.NoError(t, err)
}

func (e *testEnv) participation(t *testing.T, userID, competitionID string) *models.Participation {
	t.Helper()
	p, err := e.participations.Mine(context.Background(), userID, competitionID)
	require.NoError(t, err)
	return p
}

func (e *testEnv) match(t *testing.T, competitionID, matchID string) *models.Match {
	t.Helper()
	c, err := e.store.GetCompetition(context.Background(), competitionID)
	require.NoError(t, err)
	m := c.FindMatch(matchID)
	require.NotNil(t, m)
	return m
}
