// Package store persists competitions, participations, notifications and players.
package store

import (
	"context"
	"errors"
	"time"

	"survivor-pool/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert collides with an existing key.
var ErrDuplicate = errors.New("duplicate key")

// CompetitionStore owns competitions together with their weeks and matches.
type CompetitionStore interface {
	// CreateCompetition inserts the competition with its weeks and matches. A
	// competition, week or match id already in use yields ErrDuplicate and
	// nothing is written.
	CreateCompetition(ctx context.Context, c *models.Competition) error
	// GetCompetition loads the competition with weeks and matches in order.
	GetCompetition(ctx context.Context, id string) (*models.Competition, error)
	ListCompetitions(ctx context.Context, activeOnly bool) ([]models.Competition, error)

	// StartMatch moves a pending match to in_progress. It reports false when the
	// match was no longer pending.
	StartMatch(ctx context.Context, competitionID, matchID string, at time.Time) (bool, error)
	// RecordResult finishes a match with result unless it is already finished.
	// The returned match carries the stored (authoritative) result.
	RecordResult(ctx context.Context, competitionID, matchID string, result models.MatchResult, at time.Time) (*models.Match, error)
	// ClaimScoring flips predictions_processed false -> true. Only one caller
	// ever gets true for a given match.
	ClaimScoring(ctx context.Context, competitionID, matchID string) (bool, error)
	RepairResult(ctx context.Context, competitionID, matchID string, result models.MatchResult) error

	// AdvanceWeek moves current_week from `from` to from+1, closing the old week
	// and opening the next. It reports false if current_week was not `from`.
	AdvanceWeek(ctx context.Context, competitionID string, from int) (bool, error)
	// CompleteCompetition deactivates an active competition and records its winner.
	CompleteCompetition(ctx context.Context, competitionID string, winnerUserID *string, at time.Time) (bool, error)
}

// ParticipationStore is the participation ledger.
type ParticipationStore interface {
	// CreateParticipationIfAbsent inserts p unless (user, competition) already
	// exists, and returns whichever row is stored.
	CreateParticipationIfAbsent(ctx context.Context, p *models.Participation) (*models.Participation, bool, error)
	GetParticipation(ctx context.Context, id string) (*models.Participation, error)
	FindParticipation(ctx context.Context, userID, competitionID string) (*models.Participation, error)
	// ListParticipationsByCompetition orders by total points desc, then join time.
	ListParticipationsByCompetition(ctx context.Context, competitionID string) ([]models.Participation, error)
	ListParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error)
	CountParticipations(ctx context.Context, competitionID string) (int64, error)
	// UpdateParticipation re-reads the participation under lock, applies mutate,
	// and writes it back (with its predictions) when mutate reports a change.
	UpdateParticipation(ctx context.Context, id string, mutate func(p *models.Participation) (bool, error)) (*models.Participation, error)
	DeleteParticipation(ctx context.Context, id string) error
}

// NotificationQuery pages a user's notifications.
type NotificationQuery struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

type NotificationStore interface {
	CreateNotifications(ctx context.Context, ns []models.Notification) error
	// ListNotifications returns newest first plus the total matching count.
	ListNotifications(ctx context.Context, userID string, q NotificationQuery) ([]models.Notification, int64, error)
	// ListNotificationsSince returns notifications created after since, oldest first.
	ListNotificationsSince(ctx context.Context, userID string, since time.Time) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PlayerStore interface {
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	UpsertPlayers(ctx context.Context, players []models.Player) (int, error)
	// LatestPlayerUpdate is the zero time when no player is stored.
	LatestPlayerUpdate(ctx context.Context) (time.Time, error)
}

// Store is everything the services need.
type Store interface {
	CompetitionStore
	ParticipationStore
	NotificationStore
	PlayerStore
}
