package services

import (
	"errors"
	"fmt"

	"survivor-pool/store"
)

// Error families. Handlers map these to HTTP status codes.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

var (
	ErrCompetitionNotFound   = fmt.Errorf("competition %w", ErrNotFound)
	ErrMatchNotFound         = fmt.Errorf("match %w", ErrNotFound)
	ErrParticipationNotFound = fmt.Errorf("participation %w", ErrNotFound)
	ErrNotificationNotFound  = fmt.Errorf("notification %w", ErrNotFound)

	ErrCompetitionInactive = fmt.Errorf("%w: competition is not active", ErrConflict)
	ErrCompetitionFull     = fmt.Errorf("%w: competition is full", ErrConflict)
	ErrEliminated          = fmt.Errorf("%w: participant is eliminated", ErrConflict)
	ErrNoLivesRemaining    = fmt.Errorf("%w: no lives remaining", ErrConflict)
	ErrDuplicatePrediction = fmt.Errorf("%w: prediction already submitted for this match", ErrConflict)
	ErrBettingClosed       = fmt.Errorf("%w: betting is closed for this match", ErrConflict)
	ErrLastWeek            = fmt.Errorf("%w: competition is already in its last week", ErrConflict)
	ErrMatchNotFinished    = fmt.Errorf("%w: match has no result yet", ErrConflict)
	ErrDuplicateID         = fmt.Errorf("%w: id already in use", ErrConflict)

	ErrInvalidSide  = fmt.Errorf("%w: selected side must be home, visitor or draw", ErrInvalid)
	ErrInvalidScore = fmt.Errorf("%w: scores must be non-negative", ErrInvalid)
	ErrInvalidWeek  = fmt.Errorf("%w: week must be at least 1", ErrInvalid)
	ErrWeekMismatch = fmt.Errorf("%w: match does not belong to that week", ErrInvalid)
)

// translate maps store.ErrNotFound to the given domain error.
func translate(err error, notFound error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}
