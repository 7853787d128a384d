package models

import (
	"sort"
	"time"
)

// Competition is a multi-week survivor pool.
type Competition struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	Name            string     `json:"name" gorm:"not null"`
	Slug            string     `json:"slug" gorm:"uniqueIndex"`
	StartDate       time.Time  `json:"start_date" gorm:"not null"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	MaxLives        int        `json:"max_lives" gorm:"default:3"`
	MaxParticipants int        `json:"max_participants" gorm:"default:20"`
	IsActive        bool       `json:"is_active" gorm:"default:true;index"`
	CurrentWeek     int        `json:"current_week" gorm:"default:1"`
	TotalWeeks      int        `json:"total_weeks" gorm:"not null"`

	WinnerUserID *string    `json:"winner_user_id,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// Relationship: One Competition has many Weeks
	Weeks []Week `json:"weeks,omitempty" gorm:"foreignKey:CompetitionID"`

	Timestamps
}

// Week groups the matches played in one round of the competition.
type Week struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	CompetitionID string    `json:"competition_id" gorm:"not null;index"`
	Number        int       `json:"number" gorm:"not null"`
	Name          string    `json:"name"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	IsActive      bool      `json:"is_active" gorm:"default:false"`
	IsCompleted   bool      `json:"is_completed" gorm:"default:false"`

	// Relationship: One Week has many Matches
	Matches []Match `json:"matches,omitempty" gorm:"foreignKey:WeekID"`
}

// Matches flattens every week's matches in week then sort order.
func (c *Competition) Matches() []Match {
	var out []Match
	for _, w := range c.Weeks {
		out = append(out, w.Matches...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week < out[j].Week
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// FindMatch returns a pointer into the competition's weeks so callers can update it in place.
func (c *Competition) FindMatch(matchID string) *Match {
	for wi := range c.Weeks {
		for mi := range c.Weeks[wi].Matches {
			if c.Weeks[wi].Matches[mi].ID == matchID {
				return &c.Weeks[wi].Matches[mi]
			}
		}
	}
	return nil
}

// WeekByNumber returns the week with the given number, or nil.
func (c *Competition) WeekByNumber(number int) *Week {
	for i := range c.Weeks {
		if c.Weeks[i].Number == number {
			return &c.Weeks[i]
		}
	}
	return nil
}

// AllMatchesFinished is false for a competition without matches.
func (c *Competition) AllMatchesFinished() bool {
	matches := c.Matches()
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if !m.Finished() {
			return false
		}
	}
	return true
}
