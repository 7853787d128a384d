package handlers

import (
	"time"

	"survivor-pool/models"
	"survivor-pool/services"
)

type teamView struct {
	Name string `json:"name"`
	Flag string `json:"flag,omitempty"`
}

type resultView struct {
	HomeScore    int    `json:"home_score"`
	VisitorScore int    `json:"visitor_score"`
	Winner       string `json:"winner"`
}

type matchView struct {
	ID                   string      `json:"id"`
	CompetitionID        string      `json:"competition_id"`
	Week                 int         `json:"week"`
	Home                 teamView    `json:"home"`
	Visitor              teamView    `json:"visitor"`
	ScheduledAt          time.Time   `json:"scheduled_at"`
	BettingDeadline      time.Time   `json:"betting_deadline"`
	Status               string      `json:"status"`
	StartedAt            *time.Time  `json:"started_at,omitempty"`
	FinishedAt           *time.Time  `json:"finished_at,omitempty"`
	Result               *resultView `json:"result,omitempty"`
	PredictionsProcessed bool        `json:"predictions_processed"`
}

func newMatchView(m models.Match) matchView {
	v := matchView{
		ID:                   m.ID,
		CompetitionID:        m.CompetitionID,
		Week:                 m.Week,
		Home:                 teamView(m.Home),
		Visitor:              teamView(m.Visitor),
		ScheduledAt:          m.ScheduledAt,
		BettingDeadline:      m.BettingDeadline,
		Status:               string(m.Status),
		StartedAt:            m.StartedAt,
		FinishedAt:           m.FinishedAt,
		PredictionsProcessed: m.PredictionsProcessed,
	}
	if m.Result != nil {
		v.Result = &resultView{HomeScore: m.Result.HomeScore, VisitorScore: m.Result.VisitorScore, Winner: string(m.Result.Winner)}
	}
	return v
}

func matchViews(ms []models.Match) []matchView {
	out := make([]matchView, 0, len(ms))
	for _, m := range ms {
		out = append(out, newMatchView(m))
	}
	return out
}

type weekView struct {
	Number      int         `json:"number"`
	Name        string      `json:"name"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	IsActive    bool        `json:"is_active"`
	IsCompleted bool        `json:"is_completed"`
	Matches     []matchView `json:"matches"`
}

type competitionView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	MaxLives        int        `json:"max_lives"`
	MaxParticipants int        `json:"max_participants"`
	IsActive        bool       `json:"is_active"`
	CurrentWeek     int        `json:"current_week"`
	TotalWeeks      int        `json:"total_weeks"`
	WinnerUserID    *string    `json:"winner_user_id,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Weeks           []weekView `json:"weeks,omitempty"`
}

func newCompetitionView(c *models.Competition, withWeeks bool) competitionView {
	v := competitionView{
		ID:              c.ID,
		Name:            c.Name,
		Slug:            c.Slug,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		MaxLives:        c.MaxLives,
		MaxParticipants: c.MaxParticipants,
		IsActive:        c.IsActive,
		CurrentWeek:     c.CurrentWeek,
		TotalWeeks:      c.TotalWeeks,
		WinnerUserID:    c.WinnerUserID,
		CompletedAt:     c.CompletedAt,
	}
	if !withWeeks {
		return v
	}
	v.Weeks = make([]weekView, 0, len(c.Weeks))
	for _, w := range c.Weeks {
		v.Weeks = append(v.Weeks, weekView{
			Number:      w.Number,
			Name:        w.Name,
			StartDate:   w.StartDate,
			EndDate:     w.EndDate,
			IsActive:    w.IsActive,
			IsCompleted: w.IsCompleted,
			Matches:     matchViews(w.Matches),
		})
	}
	return v
}

type competitionSummaryView struct {
	competitionView
	Participants int64 `json:"participants"`
}

func competitionSummaries(in []services.CompetitionSummary) []competitionSummaryView {
	out := make([]competitionSummaryView, 0, len(in))
	for _, s := range in {
		out = append(out, competitionSummaryView{competitionView: newCompetitionView(&s.Competition, false), Participants: s.Participants})
	}
	return out
}

type matchStatusView struct {
	Match                matchView `json:"match"`
	Phase                string    `json:"phase"`
	TimeRemainingSeconds int64     `json:"time_remaining_seconds"`
	CanBet               bool      `json:"can_bet"`
}

func newMatchStatusView(st *services.MatchLiveStatus) matchStatusView {
	return matchStatusView{
		Match:                newMatchView(st.Match),
		Phase:                st.Phase.String(),
		TimeRemainingSeconds: int64(st.TimeRemaining / time.Second),
		CanBet:               st.CanBet,
	}
}

type leaderView struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	TotalPoints    int    `json:"total_points"`
	LivesRemaining int    `json:"lives_remaining"`
}

func leaders(ps []models.Participation) []leaderView {
	out := make([]leaderView, 0, len(ps))
	for i, p := range ps {
		out = append(out, leaderView{
			Rank:           i + 1,
			UserID:         p.UserID,
			TotalPoints:    p.TotalPoints,
			LivesRemaining: p.LivesRemaining,
		})
	}
	return out
}

type notificationPageView struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

func newNotificationPageView(p *services.NotificationPage) notificationPageView {
	ns := p.Notifications
	if ns == nil {
		ns = []models.Notification{}
	}
	return notificationPageView{Notifications: ns, Total: p.Total, Limit: p.Limit, Offset: p.Offset}
}

type statusSummaryView struct {
	CompetitionID string     `json:"competition_id"`
	Name          string     `json:"name"`
	Pending       int        `json:"pending"`
	InProgress    int        `json:"in_progress"`
	Finished      int        `json:"finished"`
	NextKickoff   *time.Time `json:"next_kickoff,omitempty"`
}

func statusSummaries(in []services.StatusSummary) []statusSummaryView {
	out := make([]statusSummaryView, 0, len(in))
	for _, s := range in {
		out = append(out, statusSummaryView(s))
	}
	return out
}
