package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"survivor-pool/services"
	"survivor-pool/store"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 14, 18, 0, 0, 0, time.UTC)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(7).Competition(now, 2, 3, time.Minute)
	b := NewGenerator(7).Competition(now, 2, 3, time.Minute)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed produced different competitions (-a +b):\n%s", diff)
	}

	require.Len(t, a.Weeks, 2)
	for _, w := range a.Weeks {
		require.Len(t, w.Matches, 3)
		for _, m := range w.Matches {
			assert.NotEqual(t, m.Home.Name, m.Visitor.Name)
			assert.True(t, m.ScheduledAt.After(now))
		}
	}
	assert.Equal(t, int64(7), NewGenerator(7).Seed())
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	clock := services.ClockFunc(func() time.Time { return now })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	competitions := services.NewCompetitionService(st, st, clock, 3*time.Minute, 3, logger)
	participations := services.NewParticipationService(st, st, st, clock, logger)

	comp, err := Run(ctx, NewGenerator(42), st, competitions, participations, Options{
		Players:        4,
		Weeks:          2,
		MatchesPerWeek: 2,
		Spacing:        5 * time.Minute,
		Now:            now,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, comp.TotalWeeks)

	ps, err := participations.ForCompetition(ctx, comp.ID)
	require.NoError(t, err)
	require.Len(t, ps, 4)
	for _, p := range ps {
		assert.Equal(t, services.DefaultMaxLives, p.LivesRemaining)
		assert.Len(t, p.Predictions, 2, "one pick per first-week match")

		player, err := st.GetPlayer(ctx, p.UserID)
		require.NoError(t, err)
		assert.NotEmpty(t, player.Username)
	}
}
