package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"survivor-pool/models"
	"survivor-pool/store"

	"github.com/google/uuid"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Notifier records per-user events. Delivery is fire-and-forget: failures are
// logged and never reach the caller.
type Notifier interface {
	PredictionResult(ctx context.Context, ev PredictionResultEvent)
	MatchResult(ctx context.Context, ev MatchResultEvent)
	Elimination(ctx context.Context, ev EliminationEvent)
}

type PredictionResultEvent struct {
	UserID          string
	CompetitionID   string
	CompetitionName string
	Match           models.Match
	Correct         bool
	PointsGained    int
	LivesLost       int
}

// MatchResultEvent is fanned out to every listed user.
type MatchResultEvent struct {
	UserIDs         []string
	CompetitionID   string
	CompetitionName string
	Match           models.Match
	Result          models.MatchResult
}

type EliminationEvent struct {
	UserID          string
	CompetitionID   string
	CompetitionName string
	Week            int
}

const (
	msgCorrectTitle     = "Correct prediction!"
	msgIncorrectTitle   = "Incorrect prediction"
	msgCorrectBody      = "In %s of %s you got it right. You earned %d points!"
	msgIncorrectBody    = "In %s of %s your prediction was wrong. You lost %d lives."
	msgResultTitle      = "Result: %s vs %s"
	msgWinnerBody       = "%s won! %s in %s has finished."
	msgDrawBody         = "Draw! %s in %s has finished."
	msgEliminationTitle = "You have been eliminated"
	msgEliminationBody  = "You ran out of lives in %s during week %d. Better luck next time!"
)

func init() {
	if err := registerCatalog(); err != nil {
		panic(fmt.Sprintf("notification catalog: %v", err))
	}
}

// registerCatalog installs the English plural forms and the Spanish
// translations. Re-registering replaces the entries.
func registerCatalog() error {
	en, es := language.English, language.Spanish
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(message.Set(en, msgIncorrectBody, plural.Selectf(3, "%d",
		"=1", "In %[1]s of %[2]s your prediction was wrong. You lost %[3]d life.",
		"other", "In %[1]s of %[2]s your prediction was wrong. You lost %[3]d lives.",
	)))

	add(message.SetString(es, msgCorrectTitle, "¡Predicción correcta!"))
	add(message.SetString(es, msgIncorrectTitle, "Predicción incorrecta"))
	add(message.SetString(es, msgCorrectBody, "En el partido %s de la liga %s acertaste tu predicción. ¡Ganaste %d puntos!"))
	add(message.Set(es, msgIncorrectBody, plural.Selectf(3, "%d",
		"=1", "En el partido %[1]s de la liga %[2]s tu predicción fue incorrecta. Perdiste %[3]d vida.",
		"other", "En el partido %[1]s de la liga %[2]s tu predicción fue incorrecta. Perdiste %[3]d vidas.",
	)))
	add(message.SetString(es, msgResultTitle, "Resultado: %s vs %s"))
	add(message.SetString(es, msgWinnerBody, "¡%s ganó! El partido %s de la liga %s ha finalizado."))
	add(message.SetString(es, msgDrawBody, "¡Empate! El partido %s de la liga %s ha finalizado."))
	add(message.SetString(es, msgEliminationTitle, "Has sido eliminado"))
	add(message.SetString(es, msgEliminationBody, "Te quedaste sin vidas en la liga %s durante la semana %d. ¡Mejor suerte la próxima vez!"))
	return errors.Join(errs...)
}

// Default paging for the notifications API.
const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100
)

// NotificationService writes notifications for the automation engine and
// serves them to users.
type NotificationService struct {
	store   store.NotificationStore
	printer *message.Printer
	clock   Clock
	logger  *slog.Logger
}

// NewNotificationService renders text in lang (a BCP 47 tag, "en" when empty or unknown).
func NewNotificationService(st store.NotificationStore, lang string, clock Clock, logger *slog.Logger) *NotificationService {
	tag, err := language.Parse(lang)
	if err != nil || lang == "" {
		tag = language.English
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		store:   st,
		printer: message.NewPrinter(tag),
		clock:   clock,
		logger:  logger.With("component", "notifications"),
	}
}

func (s *NotificationService) newNotification(userID string, typ models.NotificationType, title, body string, data models.NotificationData) models.Notification {
	now := s.clock.Now()
	return models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   body,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *NotificationService) save(ctx context.Context, kind string, ns []models.Notification) {
	if len(ns) == 0 {
		return
	}
	if err := s.store.CreateNotifications(ctx, ns); err != nil {
		s.logger.Error("failed to store notifications", "kind", kind, "count", len(ns), "error", err)
	}
}

func (s *NotificationService) PredictionResult(ctx context.Context, ev PredictionResultEvent) {
	p := s.printer
	info := ev.Match.Label()
	title := p.Sprintf(msgIncorrectTitle)
	body := p.Sprintf(msgIncorrectBody, info, ev.CompetitionName, ev.LivesLost)
	if ev.Correct {
		title = p.Sprintf(msgCorrectTitle)
		body = p.Sprintf(msgCorrectBody, info, ev.CompetitionName, ev.PointsGained)
	}
	correct := ev.Correct
	n := s.newNotification(ev.UserID, models.NotificationPredictionResult, title, body, models.NotificationData{
		CompetitionID:   ev.CompetitionID,
		CompetitionName: ev.CompetitionName,
		MatchID:         ev.Match.ID,
		MatchInfo:       info,
		Week:            ev.Match.Week,
		PointsGained:    ev.PointsGained,
		LivesLost:       ev.LivesLost,
		IsCorrect:       &correct,
	})
	s.save(ctx, "prediction_result", []models.Notification{n})
}

func (s *NotificationService) MatchResult(ctx context.Context, ev MatchResultEvent) {
	p := s.printer
	m := ev.Match
	info := fmt.Sprintf("%s %d-%d %s", m.Home.Name, ev.Result.HomeScore, ev.Result.VisitorScore, m.Visitor.Name)
	winner := m.SideName(ev.Result.Winner)

	title := p.Sprintf(msgResultTitle, m.Home.Name, m.Visitor.Name)
	body := p.Sprintf(msgWinnerBody, winner, info, ev.CompetitionName)
	if ev.Result.Winner == models.OutcomeDraw {
		body = p.Sprintf(msgDrawBody, info, ev.CompetitionName)
	}

	ns := make([]models.Notification, 0, len(ev.UserIDs))
	for _, userID := range ev.UserIDs {
		ns = append(ns, s.newNotification(userID, models.NotificationMatchResult, title, body, models.NotificationData{
			CompetitionID:   ev.CompetitionID,
			CompetitionName: ev.CompetitionName,
			MatchID:         m.ID,
			MatchInfo:       info,
			Week:            m.Week,
			Result:          ev.Result.Winner,
			HomeTeam:        m.Home.Name,
			VisitorTeam:     m.Visitor.Name,
			Winner:          winner,
		}))
	}
	s.save(ctx, "match_result", ns)
}

func (s *NotificationService) Elimination(ctx context.Context, ev EliminationEvent) {
	p := s.printer
	n := s.newNotification(ev.UserID, models.NotificationElimination,
		p.Sprintf(msgEliminationTitle),
		p.Sprintf(msgEliminationBody, ev.CompetitionName, ev.Week),
		models.NotificationData{
			CompetitionID:   ev.CompetitionID,
			CompetitionName: ev.CompetitionName,
			Week:            ev.Week,
		})
	s.save(ctx, "elimination", []models.Notification{n})
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Notifications []models.Notification
	Total         int64
	Limit         int
	Offset        int
}

func (s *NotificationService) List(ctx context.Context, userID string, q store.NotificationQuery) (*NotificationPage, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultNotificationLimit
	}
	if q.Limit > MaxNotificationLimit {
		q.Limit = MaxNotificationLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	ns, total, err := s.store.ListNotifications(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Notifications: ns, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.store.MarkRead(ctx, userID, id); err != nil {
		return translate(err, ErrNotificationNotFound)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// Since returns notifications created after the cursor, oldest first.
func (s *NotificationService) Since(ctx context.Context, userID string, cursor time.Time) ([]models.Notification, error) {
	return s.store.ListNotificationsSince(ctx, userID, cursor)
}

// Cleanup deletes notifications older than retention.
func (s *NotificationService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, errors.New("retention must be positive")
	}
	cutoff := s.clock.Now().Add(-retention)
	n, err := s.store.DeleteNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("old notifications removed", "deleted", n, "cutoff", cutoff)
	return n, nil
}
