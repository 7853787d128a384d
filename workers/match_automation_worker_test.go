package workers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"survivor-pool/models"
	"survivor-pool/services"
	"survivor-pool/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAutomationWorker_BootResyncAndStop(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	now := time.Date(2026, 6, 14, 18, 0, 0, 0, time.UTC)
	clock := services.ClockFunc(func() time.Time { return now })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	competitions := services.NewCompetitionService(st, st, clock, 3*time.Minute, 3, logger)
	comp, err := competitions.CreateCompetition(ctx, services.CompetitionInput{
		Name:      "Boot",
		StartDate: now,
		Weeks: []services.WeekInput{{Number: 1, Matches: []services.MatchInput{{
			ID:          "m1",
			Home:        models.Team{Name: "A"},
			Visitor:     models.Team{Name: "B"},
			ScheduledAt: now.Add(time.Minute),
		}}}},
	})
	require.NoError(t, err)

	notifications := services.NewNotificationService(st, "en", clock, logger)
	automation := services.NewAutomationService(st, st, services.AutomationOptions{
		Results:       services.FixedResultSource{HomeScore: 0, VisitorScore: 1},
		Notifier:      notifications,
		Clock:         clock,
		Logger:        logger,
		MatchDuration: 2 * time.Minute,
		SyncGrace:     3 * time.Minute,
	})

	// The process was down through the whole match.
	now = now.Add(time.Hour)

	w := NewMatchAutomationWorker(automation, notifications, nil, MatchAutomationWorkerConfig{TickInterval: time.Hour, Retention: 24 * time.Hour})
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "second start is a no-op")

	m, err := competitions.GetMatch(ctx, comp.ID, "m1")
	require.NoError(t, err)
	assert.True(t, m.Finished())
	assert.True(t, m.PredictionsProcessed)
	require.NotNil(t, m.Result)
	assert.Equal(t, models.OutcomeVisitor, m.Result.Winner)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
