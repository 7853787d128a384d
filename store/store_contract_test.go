package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"survivor-pool/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 6, 14, 18, 0, 0, 0, time.UTC)

func newCompetition() *models.Competition {
	id := uuid.NewString()
	c := &models.Competition{
		ID:          id,
		Name:        "Copa " + id[:4],
		Slug:        "copa-" + id,
		StartDate:   base,
		MaxLives:    3,
		IsActive:    true,
		CurrentWeek: 1,
		TotalWeeks:  2,
	}
	for n := 1; n <= 2; n++ {
		w := models.Week{ID: uuid.NewString(), CompetitionID: id, Number: n, Name: "Week", IsActive: n == 1}
		for i := 0; i < 2; i++ {
			kickoff := base.Add(time.Duration(n*24+i) * time.Hour)
			w.Matches = append(w.Matches, models.Match{
				ID:              uuid.NewString(),
				CompetitionID:   id,
				WeekID:          w.ID,
				Week:            n,
				SortOrder:       i,
				Home:            models.Team{Name: "H"},
				Visitor:         models.Team{Name: "V"},
				ScheduledAt:     kickoff,
				BettingDeadline: kickoff,
				Status:          models.MatchStatusPending,
			})
		}
		c.Weeks = append(c.Weeks, w)
	}
	return c
}

func newParticipation(competitionID, userID string, joined time.Time) *models.Participation {
	return &models.Participation{
		ID:             uuid.NewString(),
		UserID:         userID,
		CompetitionID:  competitionID,
		LivesRemaining: 3,
		JoinedAt:       joined,
		LastActivityAt: joined,
		Predictions:    []models.Prediction{},
	}
}

// runStoreContract checks the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("competition round trip", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, c))

		got, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		opts := cmp.Options{
			cmpopts.IgnoreFields(models.Timestamps{}, "CreatedAt", "UpdatedAt"),
			cmpopts.EquateApproxTime(time.Millisecond),
		}
		if diff := cmp.Diff(c.Matches(), got.Matches(), opts); diff != "" {
			t.Fatalf("matches differ (-want +got):\n%s", diff)
		}
		assert.Equal(t, 1, got.Weeks[0].Number)

		_, err = s.GetCompetition(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("reused match id is rejected", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		first := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, first))
		taken := first.Weeks[0].Matches[0].ID

		second := newCompetition()
		second.Weeks[1].Matches[0].ID = taken
		err := s.CreateCompetition(ctx, second)
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = s.GetCompetition(ctx, second.ID)
		assert.ErrorIs(t, err, ErrNotFound, "nothing of the rejected competition is stored")

		got, err := s.GetCompetition(ctx, first.ID)
		require.NoError(t, err)
		m := got.FindMatch(taken)
		require.NotNil(t, m)
		assert.Equal(t, first.ID, m.CompetitionID)
		assert.Equal(t, first.Weeks[0].ID, m.WeekID)
		assert.Len(t, got.Matches(), 4)
	})

	t.Run("match lifecycle", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, c))
		mid := c.Weeks[0].Matches[0].ID

		ok, err := s.StartMatch(ctx, c.ID, mid, base)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.StartMatch(ctx, c.ID, mid, base)
		require.NoError(t, err)
		assert.False(t, ok, "only pending matches start")

		first, _ := models.NewMatchResult(2, 1)
		m, err := s.RecordResult(ctx, c.ID, mid, first, base.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, m.Finished())
		assert.Equal(t, first, *m.Result)

		second, _ := models.NewMatchResult(0, 4)
		m, err = s.RecordResult(ctx, c.ID, mid, second, base.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, first, *m.Result, "the stored result wins")

		fixed := models.MatchResult{HomeScore: 2, VisitorScore: 1, Winner: models.OutcomeHome}
		require.NoError(t, s.RepairResult(ctx, c.ID, mid, fixed))

		_, err = s.RecordResult(ctx, c.ID, "missing", first, base)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("claim scoring once", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, c))
		mid := c.Weeks[0].Matches[1].ID

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.ClaimScoring(ctx, c.ID, mid)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)

		got, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, got.FindMatch(mid).PredictionsProcessed)
	})

	t.Run("advance and complete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, c))

		ok, err := s.AdvanceWeek(ctx, c.ID, 2)
		require.NoError(t, err)
		assert.False(t, ok, "stale week")

		ok, err = s.AdvanceWeek(ctx, c.ID, 1)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentWeek)
		assert.True(t, got.WeekByNumber(1).IsCompleted)
		assert.True(t, got.WeekByNumber(2).IsActive)

		winner := "u1"
		ok, err = s.CompleteCompetition(ctx, c.ID, &winner, base)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.CompleteCompetition(ctx, c.ID, nil, base)
		require.NoError(t, err)
		assert.False(t, ok)

		active, err := s.ListCompetitions(ctx, true)
		require.NoError(t, err)
		for _, a := range active {
			assert.NotEqual(t, c.ID, a.ID)
		}
		got, err = s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, got.WinnerUserID)
		assert.Equal(t, "u1", *got.WinnerUserID)
	})

	t.Run("participation uniqueness", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, c))

		first, created, err := s.CreateParticipationIfAbsent(ctx, newParticipation(c.ID, "u1", base))
		require.NoError(t, err)
		assert.True(t, created)

		again, created, err := s.CreateParticipationIfAbsent(ctx, newParticipation(c.ID, "u1", base.Add(time.Hour)))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)

		n, err := s.CountParticipations(ctx, c.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("update participation", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, c))
		p, _, err := s.CreateParticipationIfAbsent(ctx, newParticipation(c.ID, "u1", base))
		require.NoError(t, err)
		mid := c.Weeks[0].Matches[0].ID

		updated, err := s.UpdateParticipation(ctx, p.ID, func(p *models.Participation) (bool, error) {
			p.Predictions = append(p.Predictions, models.Prediction{
				ID: uuid.NewString(), ParticipationID: p.ID, Week: 1, MatchID: mid,
				SelectedSide: models.OutcomeHome, CreatedAt: base,
			})
			return true, nil
		})
		require.NoError(t, err)
		require.Len(t, updated.Predictions, 1)

		_, err = s.UpdateParticipation(ctx, p.ID, func(p *models.Participation) (bool, error) {
			correct, points, at := true, 10, base
			p.Predictions[0].IsCorrect = &correct
			p.Predictions[0].PointsEarned = &points
			p.Predictions[0].ScoredAt = &at
			p.TotalPoints += 10
			return true, nil
		})
		require.NoError(t, err)

		got, err := s.GetParticipation(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.TotalPoints)
		require.Len(t, got.Predictions, 1)
		require.NotNil(t, got.Predictions[0].IsCorrect)
		assert.True(t, *got.Predictions[0].IsCorrect)

		// A mutate that reports no change writes nothing.
		_, err = s.UpdateParticipation(ctx, p.ID, func(p *models.Participation) (bool, error) {
			p.TotalPoints = 999
			return false, nil
		})
		require.NoError(t, err)
		got, err = s.GetParticipation(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.TotalPoints)

		_, err = s.UpdateParticipation(ctx, "missing", func(*models.Participation) (bool, error) { return true, nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("participation ordering and removal", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newCompetition()
		require.NoError(t, s.CreateCompetition(ctx, c))

		late, _, err := s.CreateParticipationIfAbsent(ctx, newParticipation(c.ID, "late", base.Add(time.Hour)))
		require.NoError(t, err)
		early, _, err := s.CreateParticipationIfAbsent(ctx, newParticipation(c.ID, "early", base))
		require.NoError(t, err)
		rich, _, err := s.CreateParticipationIfAbsent(ctx, newParticipation(c.ID, "rich", base.Add(2*time.Hour)))
		require.NoError(t, err)
		_, err = s.UpdateParticipation(ctx, rich.ID, func(p *models.Participation) (bool, error) {
			p.TotalPoints = 30
			return true, nil
		})
		require.NoError(t, err)

		ps, err := s.ListParticipationsByCompetition(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, ps, 3)
		assert.Equal(t, []string{rich.ID, early.ID, late.ID}, []string{ps[0].ID, ps[1].ID, ps[2].ID})

		found, err := s.FindParticipation(ctx, "late", c.ID)
		require.NoError(t, err)
		assert.Equal(t, late.ID, found.ID)

		require.NoError(t, s.DeleteParticipation(ctx, late.ID))
		_, err = s.FindParticipation(ctx, "late", c.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteParticipation(ctx, late.ID), ErrNotFound)
	})

	t.Run("notifications", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		user := uuid.NewString()
		var ns []models.Notification
		for i := 0; i < 3; i++ {
			at := base.Add(time.Duration(i) * time.Minute)
			ns = append(ns, models.Notification{
				ID: uuid.NewString(), UserID: user, Type: models.NotificationMatchResult,
				Title: "t", Message: "m", Data: models.NotificationData{Week: i + 1},
				CreatedAt: at, UpdatedAt: at,
			})
		}
		require.NoError(t, s.CreateNotifications(ctx, ns))

		page, total, err := s.ListNotifications(ctx, user, NotificationQuery{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, page, 2)
		assert.Equal(t, 2, page[0].Data.Week)

		since, err := s.ListNotificationsSince(ctx, user, base)
		require.NoError(t, err)
		require.Len(t, since, 2)
		assert.Equal(t, 2, since[0].Data.Week, "oldest first")

		require.NoError(t, s.MarkRead(ctx, user, ns[0].ID))
		assert.ErrorIs(t, s.MarkRead(ctx, "someone-else", ns[1].ID), ErrNotFound)
		unread, err := s.CountUnread(ctx, user)
		require.NoError(t, err)
		assert.EqualValues(t, 2, unread)

		n, err := s.MarkAllRead(ctx, user)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		removed, err := s.DeleteNotificationsBefore(ctx, base.Add(90*time.Second))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, removed, int64(2))
		_, total, err = s.ListNotifications(ctx, user, NotificationQuery{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
	})

	t.Run("players", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		id := uuid.NewString()
		lives := 4
		n, err := s.UpsertPlayers(ctx, []models.Player{{ID: id, Username: "ana", Lives: &lives, IsActive: true, UpdatedAt: base}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		lives = 2
		_, err = s.UpsertPlayers(ctx, []models.Player{{ID: id, Username: "ana_b", Lives: &lives, IsActive: true, UpdatedAt: base.Add(time.Hour)}})
		require.NoError(t, err)

		p, err := s.GetPlayer(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "ana_b", p.Username)
		require.NotNil(t, p.Lives)
		assert.Equal(t, 2, *p.Lives)

		latest, err := s.LatestPlayerUpdate(ctx)
		require.NoError(t, err)
		assert.False(t, latest.Before(base.Add(time.Hour)))

		_, err = s.GetPlayer(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
