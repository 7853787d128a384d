package services

import (
	"context"
	"sort"

	"survivor-pool/models"
)

// DefaultLeadersLimit caps the leaders list.
const DefaultLeadersLimit = 10

// Standing is one row of a final leaderboard.
type Standing struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"user_id"`
	ParticipationID string `json:"participation_id"`
	LivesRemaining  int    `json:"lives_remaining"`
	TotalPoints     int    `json:"total_points"`
	IsEliminated    bool   `json:"is_eliminated"`
	EliminationWeek *int   `json:"elimination_week,omitempty"`
}

// StandingsArchiver stores the final leaderboard of a completed competition.
type StandingsArchiver interface {
	ArchiveStandings(ctx context.Context, c *models.Competition, standings []Standing) (string, error)
}

func survivors(ps []models.Participation) []models.Participation {
	out := make([]models.Participation, 0, len(ps))
	for _, p := range ps {
		if !p.IsEliminated && p.LivesRemaining > 0 {
			out = append(out, p)
		}
	}
	return out
}

// RankLeaders keeps non-eliminated participants ordered by points, then lives.
func RankLeaders(ps []models.Participation, limit int) []models.Participation {
	out := survivors(ps)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].LivesRemaining > out[j].LivesRemaining
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// lessByLives orders by lives, then points, then earliest join.
func lessByLives(a, b models.Participation) bool {
	if a.LivesRemaining != b.LivesRemaining {
		return a.LivesRemaining > b.LivesRemaining
	}
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	return a.JoinedAt.Before(b.JoinedAt)
}

// DetermineWinner picks the non-eliminated participant with the most lives,
// tie-broken by points. It returns nil when everybody was eliminated.
func DetermineWinner(ps []models.Participation) *models.Participation {
	alive := survivors(ps)
	if len(alive) == 0 {
		return nil
	}
	sort.SliceStable(alive, func(i, j int) bool { return lessByLives(alive[i], alive[j]) })
	w := alive[0]
	return &w
}

// FinalStandings ranks survivors first (lives, points), then eliminated
// participants by how late they went out.
func FinalStandings(ps []models.Participation) []Standing {
	sorted := append([]models.Participation(nil), ps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsEliminated != b.IsEliminated {
			return !a.IsEliminated
		}
		if a.IsEliminated {
			wa, wb := 0, 0
			if a.EliminationWeek != nil {
				wa = *a.EliminationWeek
			}
			if b.EliminationWeek != nil {
				wb = *b.EliminationWeek
			}
			if wa != wb {
				return wa > wb
			}
		}
		return lessByLives(a, b)
	})

	out := make([]Standing, len(sorted))
	for i, p := range sorted {
		out[i] = Standing{
			Rank:            i + 1,
			UserID:          p.UserID,
			ParticipationID: p.ID,
			LivesRemaining:  p.LivesRemaining,
			TotalPoints:     p.TotalPoints,
			IsEliminated:    p.IsEliminated,
			EliminationWeek: p.EliminationWeek,
		}
	}
	return out
}
