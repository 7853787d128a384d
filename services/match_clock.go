package services

import (
	"time"

	"survivor-pool/models"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Phase is the lifecycle phase derived from the clock and the stored status.
type Phase int

const (
	PhaseUpcoming Phase = iota
	PhaseDueToStart
	PhaseInProgress
	PhaseDueForSync
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseUpcoming:
		return "upcoming"
	case PhaseDueToStart:
		return "due_to_start"
	case PhaseInProgress:
		return "in_progress"
	case PhaseDueForSync:
		return "due_for_sync"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// DefaultSyncGrace is how long past kickoff an unfinished match may stay before
// it is force-finished.
const DefaultSyncGrace = 3 * time.Minute

// Classification is the result of ClassifyMatch.
type Classification struct {
	Phase Phase
	// TimeRemaining until kickoff; only set for PhaseUpcoming.
	TimeRemaining time.Duration
}

// MatchClock classifies matches against a sync grace window.
type MatchClock struct {
	SyncGrace time.Duration
}

// ClassifyMatch is pure: the same now and match always give the same phase.
// A finished status always wins over anything inferred from time.
func (mc MatchClock) ClassifyMatch(now time.Time, m models.Match) Classification {
	grace := mc.SyncGrace
	if grace <= 0 {
		grace = DefaultSyncGrace
	}

	if m.Status == models.MatchStatusFinished {
		return Classification{Phase: PhaseFinished}
	}
	if now.Sub(m.ScheduledAt) > grace {
		return Classification{Phase: PhaseDueForSync}
	}
	if m.Status == models.MatchStatusInProgress {
		return Classification{Phase: PhaseInProgress}
	}
	if !now.Before(m.ScheduledAt) {
		return Classification{Phase: PhaseDueToStart}
	}
	return Classification{Phase: PhaseUpcoming, TimeRemaining: m.ScheduledAt.Sub(now)}
}

// ClassifyMatch uses the default grace window.
func ClassifyMatch(now time.Time, m models.Match) Classification {
	return MatchClock{SyncGrace: DefaultSyncGrace}.ClassifyMatch(now, m)
}

// CanBet reports whether predictions are still accepted for m.
func CanBet(now time.Time, m models.Match) bool {
	if m.Status != models.MatchStatusPending {
		return false
	}
	deadline := m.BettingDeadline
	if deadline.IsZero() {
		deadline = m.ScheduledAt
	}
	return now.Before(deadline)
}
