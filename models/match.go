package models

import (
	"fmt"
	"time"
)

// MatchStatus is the single lifecycle state of a match.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusFinished   MatchStatus = "finished"
)

// Outcome is the side a prediction selects, and the winner of a finished match.
type Outcome string

const (
	OutcomeHome    Outcome = "home"
	OutcomeVisitor Outcome = "visitor"
	OutcomeDraw    Outcome = "draw"
)

// Outcomes lists every valid outcome in a stable order.
var Outcomes = []Outcome{OutcomeHome, OutcomeVisitor, OutcomeDraw}

// Valid reports whether o is home, visitor or draw.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeHome, OutcomeVisitor, OutcomeDraw:
		return true
	}
	return false
}

// WinnerFromScores derives the winner from a scoreline.
func WinnerFromScores(homeScore, visitorScore int) Outcome {
	switch {
	case homeScore > visitorScore:
		return OutcomeHome
	case visitorScore > homeScore:
		return OutcomeVisitor
	default:
		return OutcomeDraw
	}
}

// MatchResult is the final score of a match. Winner is always derived from the scores.
type MatchResult struct {
	HomeScore    int     `json:"home_score"`
	VisitorScore int     `json:"visitor_score"`
	Winner       Outcome `json:"winner"`
}

// NewMatchResult builds a result whose winner agrees with the scoreline.
func NewMatchResult(homeScore, visitorScore int) (MatchResult, error) {
	if homeScore < 0 || visitorScore < 0 {
		return MatchResult{}, fmt.Errorf("scores must be non-negative (got %d-%d)", homeScore, visitorScore)
	}
	return MatchResult{
		HomeScore:    homeScore,
		VisitorScore: visitorScore,
		Winner:       WinnerFromScores(homeScore, visitorScore),
	}, nil
}

// Consistent reports whether the stored winner matches the scoreline.
func (r MatchResult) Consistent() bool {
	return r.Winner == WinnerFromScores(r.HomeScore, r.VisitorScore)
}

// Team is one side of a fixture.
type Team struct {
	Name string `json:"name" gorm:"not null"`
	Flag string `json:"flag"`
}

// Match is a single fixture inside a competition week.
type Match struct {
	ID            string `json:"id" gorm:"primaryKey"`
	CompetitionID string `json:"competition_id" gorm:"not null;index"`
	WeekID        string `json:"week_id" gorm:"not null;index"`
	Week          int    `json:"week" gorm:"not null"`
	SortOrder     int    `json:"sort_order" gorm:"column:sort_order;default:0"`

	Home    Team `json:"home" gorm:"embedded;embeddedPrefix:home_"`
	Visitor Team `json:"visitor" gorm:"embedded;embeddedPrefix:visitor_"`

	ScheduledAt     time.Time   `json:"scheduled_at" gorm:"not null;index"`
	BettingDeadline time.Time   `json:"betting_deadline"`
	Status          MatchStatus `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`

	Result               *MatchResult `json:"result,omitempty" gorm:"serializer:json"`
	PredictionsProcessed bool         `json:"predictions_processed" gorm:"default:false"`

	Timestamps
}

// Finished reports whether the match reached its terminal state.
func (m Match) Finished() bool {
	return m.Status == MatchStatusFinished
}

// Label renders "Home vs Visitor".
func (m Match) Label() string {
	return fmt.Sprintf("%s vs %s", m.Home.Name, m.Visitor.Name)
}

// SideName returns the team name for an outcome, or "Draw".
func (m Match) SideName(o Outcome) string {
	switch o {
	case OutcomeHome:
		return m.Home.Name
	case OutcomeVisitor:
		return m.Visitor.Name
	default:
		return "Draw"
	}
}
