package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"survivor-pool/models"
	"survivor-pool/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func sampleMatch() models.Match {
	return models.Match{ID: "m1", Week: 2, Home: models.Team{Name: "Mexico"}, Visitor: models.Team{Name: "Canada"}}
}

func newNotifications(t *testing.T, lang string) (*NotificationService, *store.MemoryStore, *fakeClock) {
	t.Helper()
	st := store.NewMemoryStore()
	clock := newFakeClock(t0)
	return NewNotificationService(st, lang, clock, discardLogger()), st, clock
}

func TestNotificationService_PredictionResultEnglish(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newNotifications(t, "en")

	svc.PredictionResult(ctx, PredictionResultEvent{UserID: "u1", CompetitionID: "c1", CompetitionName: "Copa", Match: sampleMatch(), Correct: true, PointsGained: 10})
	svc.PredictionResult(ctx, PredictionResultEvent{UserID: "u1", CompetitionID: "c1", CompetitionName: "Copa", Match: sampleMatch(), LivesLost: 1})

	page, err := svc.List(ctx, "u1", store.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)

	var bodies []string
	for _, n := range page.Notifications {
		assert.Equal(t, models.NotificationPredictionResult, n.Type)
		assert.Equal(t, "m1", n.Data.MatchID)
		assert.Equal(t, "Mexico vs Canada", n.Data.MatchInfo)
		assert.Equal(t, 2, n.Data.Week)
		require.NotNil(t, n.Data.IsCorrect)
		bodies = append(bodies, n.Message)
	}
	assert.Contains(t, bodies, "In Mexico vs Canada of Copa you got it right. You earned 10 points!")
	assert.Contains(t, bodies, "In Mexico vs Canada of Copa your prediction was wrong. You lost 1 life.")
}

func TestNotificationService_Spanish(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newNotifications(t, "es")

	svc.Elimination(ctx, EliminationEvent{UserID: "u1", CompetitionID: "c1", CompetitionName: "Copa", Week: 3})
	page, err := svc.List(ctx, "u1", store.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)

	n := page.Notifications[0]
	assert.Equal(t, models.NotificationElimination, n.Type)
	assert.Equal(t, "Has sido eliminado", n.Title)
	assert.True(t, strings.Contains(n.Message, "semana 3"), n.Message)
}

func TestRegisterCatalog(t *testing.T) {
	require.NoError(t, registerCatalog(), "re-registering replaces entries")

	es := message.NewPrinter(language.Spanish)
	assert.Equal(t, "Predicción incorrecta", es.Sprintf(msgIncorrectTitle))
	assert.Equal(t,
		"En el partido A vs B de la liga Copa tu predicción fue incorrecta. Perdiste 2 vidas.",
		es.Sprintf(msgIncorrectBody, "A vs B", "Copa", 2))

	en := message.NewPrinter(language.English)
	assert.Equal(t, "In A vs B of Copa your prediction was wrong. You lost 2 lives.", en.Sprintf(msgIncorrectBody, "A vs B", "Copa", 2))
}

func TestNotificationService_MatchResultFansOut(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newNotifications(t, "")

	draw, _ := models.NewMatchResult(1, 1)
	svc.MatchResult(ctx, MatchResultEvent{UserIDs: []string{"u1", "u2"}, CompetitionID: "c1", CompetitionName: "Copa", Match: sampleMatch(), Result: draw})

	for _, user := range []string{"u1", "u2"} {
		page, err := svc.List(ctx, user, store.NotificationQuery{})
		require.NoError(t, err)
		require.Len(t, page.Notifications, 1)
		n := page.Notifications[0]
		assert.Equal(t, "Result: Mexico vs Canada", n.Title)
		assert.True(t, strings.HasPrefix(n.Message, "Draw!"), n.Message)
		assert.Equal(t, models.OutcomeDraw, n.Data.Result)
		assert.Equal(t, "Draw", n.Data.Winner)
	}
}

func TestNotificationService_ReadState(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newNotifications(t, "en")
	for i := 0; i < 3; i++ {
		svc.Elimination(ctx, EliminationEvent{UserID: "u1", CompetitionName: "Copa", Week: i + 1})
		clock.Advance(time.Second)
	}

	n, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	page, err := svc.List(ctx, "u1", store.NotificationQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 3, page.Notifications[0].Data.Week, "newest first")

	require.NoError(t, svc.MarkRead(ctx, "u1", page.Notifications[0].ID))
	assert.ErrorIs(t, svc.MarkRead(ctx, "u2", page.Notifications[1].ID), ErrNotificationNotFound)

	unread, err := svc.List(ctx, "u1", store.NotificationQuery{UnreadOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread.Total)

	updated, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	since, err := svc.Since(ctx, "u1", t0)
	require.NoError(t, err)
	assert.Len(t, since, 2, "created strictly after the cursor")
}

func TestNotificationService_ListClampsPaging(t *testing.T) {
	svc, _, _ := newNotifications(t, "en")
	page, err := svc.List(context.Background(), "u1", store.NotificationQuery{Limit: 5000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, MaxNotificationLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)

	page, err = svc.List(context.Background(), "u1", store.NotificationQuery{})
	require.NoError(t, err)
	assert.Equal(t, DefaultNotificationLimit, page.Limit)
}

func TestNotificationService_Cleanup(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newNotifications(t, "en")

	svc.Elimination(ctx, EliminationEvent{UserID: "u1", Week: 1})
	clock.Advance(48 * time.Hour)
	svc.Elimination(ctx, EliminationEvent{UserID: "u1", Week: 2})

	removed, err := svc.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = svc.Cleanup(ctx, 0)
	assert.Error(t, err)
}

type failingNotificationStore struct {
	*store.MemoryStore
}

func (failingNotificationStore) CreateNotifications(context.Context, []models.Notification) error {
	return errors.New("disk full")
}

func TestNotificationService_SaveFailureIsSwallowed(t *testing.T) {
	svc := NewNotificationService(failingNotificationStore{store.NewMemoryStore()}, "en", nil, discardLogger())
	assert.NotPanics(t, func() {
		svc.Elimination(context.Background(), EliminationEvent{UserID: "u1"})
	})
}
