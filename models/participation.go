package models

import "time"

// Participation is one user's running state within one competition.
type Participation struct {
	ID            string `gorm:"primaryKey" json:"id"`
	UserID        string `gorm:"not null;uniqueIndex:idx_participation_user_competition;index" json:"user_id"`
	CompetitionID string `gorm:"not null;uniqueIndex:idx_participation_user_competition;index:idx_participation_competition_eliminated" json:"competition_id"`

	LivesRemaining  int  `json:"lives_remaining" gorm:"not null;check:lives_remaining >= 0"`
	TotalPoints     int  `json:"total_points" gorm:"default:0;check:total_points >= 0"`
	IsEliminated    bool `json:"is_eliminated" gorm:"default:false;index:idx_participation_competition_eliminated"`
	EliminationWeek *int `json:"elimination_week,omitempty"`

	JoinedAt       time.Time `json:"joined_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	Predictions []Prediction `json:"predictions" gorm:"foreignKey:ParticipationID;constraint:OnDelete:CASCADE"`

	Timestamps
}

// Prediction is a participant's pick for one match. IsCorrect is set exactly once.
type Prediction struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	ParticipationID string     `gorm:"not null;uniqueIndex:idx_prediction_week_match" json:"participation_id"`
	Week            int        `gorm:"not null;uniqueIndex:idx_prediction_week_match" json:"week"`
	MatchID         string     `gorm:"not null;uniqueIndex:idx_prediction_week_match;index" json:"match_id"`
	SelectedSide    Outcome    `gorm:"type:varchar(16);not null" json:"selected_side"`
	IsCorrect       *bool      `json:"is_correct,omitempty"`
	PointsEarned    *int       `json:"points_earned,omitempty"`
	ScoredAt        *time.Time `json:"scored_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// Scored reports whether the prediction has already been evaluated.
func (p Prediction) Scored() bool {
	return p.IsCorrect != nil
}

// HasPrediction reports whether a pick exists for (week, match).
func (p *Participation) HasPrediction(week int, matchID string) bool {
	for _, pr := range p.Predictions {
		if pr.Week == week && pr.MatchID == matchID {
			return true
		}
	}
	return false
}
