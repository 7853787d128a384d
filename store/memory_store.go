package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"survivor-pool/models"
)

// MemoryStore keeps everything in process. Values are copied in and out so
// callers never share state with the store.
type MemoryStore struct {
	mu             sync.Mutex
	competitions   map[string]*models.Competition
	participations map[string]*models.Participation
	notifications  []models.Notification
	players        map[string]*models.Player
	now            func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		competitions:   make(map[string]*models.Competition),
		participations: make(map[string]*models.Participation),
		players:        make(map[string]*models.Player),
		now:            time.Now,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneMatch(m models.Match) models.Match {
	out := m
	out.StartedAt = cloneTime(m.StartedAt)
	out.FinishedAt = cloneTime(m.FinishedAt)
	if m.Result != nil {
		r := *m.Result
		out.Result = &r
	}
	return out
}

func cloneCompetition(c *models.Competition) *models.Competition {
	out := *c
	out.EndDate = cloneTime(c.EndDate)
	out.CompletedAt = cloneTime(c.CompletedAt)
	if c.WinnerUserID != nil {
		w := *c.WinnerUserID
		out.WinnerUserID = &w
	}
	out.Weeks = make([]models.Week, len(c.Weeks))
	for i, w := range c.Weeks {
		nw := w
		nw.Matches = make([]models.Match, len(w.Matches))
		for j, m := range w.Matches {
			nw.Matches[j] = cloneMatch(m)
		}
		out.Weeks[i] = nw
	}
	return &out
}

func clonePrediction(p models.Prediction) models.Prediction {
	out := p
	out.ScoredAt = cloneTime(p.ScoredAt)
	if p.IsCorrect != nil {
		v := *p.IsCorrect
		out.IsCorrect = &v
	}
	if p.PointsEarned != nil {
		v := *p.PointsEarned
		out.PointsEarned = &v
	}
	return out
}

func cloneParticipation(p *models.Participation) *models.Participation {
	out := *p
	if p.EliminationWeek != nil {
		w := *p.EliminationWeek
		out.EliminationWeek = &w
	}
	out.Predictions = make([]models.Prediction, len(p.Predictions))
	for i, pr := range p.Predictions {
		out.Predictions[i] = clonePrediction(pr)
	}
	return &out
}

// --- competitions ---

func (s *MemoryStore) CreateCompetition(_ context.Context, c *models.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkKeys(c); err != nil {
		return err
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.competitions[c.ID] = cloneCompetition(c)
	return nil
}

// checkKeys mirrors the primary and unique keys of the SQL schema.
func (s *MemoryStore) checkKeys(c *models.Competition) error {
	if _, ok := s.competitions[c.ID]; ok {
		return fmt.Errorf("%w: competition %s", ErrDuplicate, c.ID)
	}
	weeks := map[string]bool{}
	matches := map[string]bool{}
	for _, existing := range s.competitions {
		if c.Slug != "" && existing.Slug == c.Slug {
			return fmt.Errorf("%w: slug %s", ErrDuplicate, c.Slug)
		}
		for _, w := range existing.Weeks {
			weeks[w.ID] = true
			for _, m := range w.Matches {
				matches[m.ID] = true
			}
		}
	}
	for _, w := range c.Weeks {
		if weeks[w.ID] {
			return fmt.Errorf("%w: week %s", ErrDuplicate, w.ID)
		}
		weeks[w.ID] = true
		for _, m := range w.Matches {
			if matches[m.ID] {
				return fmt.Errorf("%w: match %s", ErrDuplicate, m.ID)
			}
			matches[m.ID] = true
		}
	}
	return nil
}

func (s *MemoryStore) GetCompetition(_ context.Context, id string) (*models.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCompetition(c), nil
}

func (s *MemoryStore) ListCompetitions(_ context.Context, activeOnly bool) ([]models.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Competition, 0, len(s.competitions))
	for _, c := range s.competitions {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *cloneCompetition(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// match must be called with mu held.
func (s *MemoryStore) match(competitionID, matchID string) (*models.Match, error) {
	c, ok := s.competitions[competitionID]
	if !ok {
		return nil, ErrNotFound
	}
	m := c.FindMatch(matchID)
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) StartMatch(_ context.Context, competitionID, matchID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.match(competitionID, matchID)
	if err != nil {
		return false, nil
	}
	if m.Status != models.MatchStatusPending {
		return false, nil
	}
	m.Status = models.MatchStatusInProgress
	m.StartedAt = cloneTime(&at)
	return true, nil
}

func (s *MemoryStore) RecordResult(_ context.Context, competitionID, matchID string, result models.MatchResult, at time.Time) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.match(competitionID, matchID)
	if err != nil {
		return nil, err
	}
	if m.Finished() && m.Result != nil {
		out := cloneMatch(*m)
		return &out, nil
	}
	r := result
	m.Status = models.MatchStatusFinished
	m.Result = &r
	m.FinishedAt = cloneTime(&at)
	if m.StartedAt == nil {
		m.StartedAt = cloneTime(&at)
	}
	out := cloneMatch(*m)
	return &out, nil
}

func (s *MemoryStore) ClaimScoring(_ context.Context, competitionID, matchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.match(competitionID, matchID)
	if err != nil {
		return false, nil
	}
	if m.PredictionsProcessed {
		return false, nil
	}
	m.PredictionsProcessed = true
	return true, nil
}

func (s *MemoryStore) RepairResult(_ context.Context, competitionID, matchID string, result models.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.match(competitionID, matchID)
	if err != nil {
		return err
	}
	r := result
	m.Result = &r
	return nil
}

func (s *MemoryStore) AdvanceWeek(_ context.Context, competitionID string, from int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[competitionID]
	if !ok || c.CurrentWeek != from {
		return false, nil
	}
	c.CurrentWeek = from + 1
	for i := range c.Weeks {
		switch c.Weeks[i].Number {
		case from:
			c.Weeks[i].IsActive = false
			c.Weeks[i].IsCompleted = true
		case from + 1:
			c.Weeks[i].IsActive = true
		}
	}
	return true, nil
}

func (s *MemoryStore) CompleteCompetition(_ context.Context, competitionID string, winnerUserID *string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[competitionID]
	if !ok || !c.IsActive {
		return false, nil
	}
	c.IsActive = false
	c.CompletedAt = cloneTime(&at)
	if winnerUserID != nil {
		w := *winnerUserID
		c.WinnerUserID = &w
	}
	for i := range c.Weeks {
		c.Weeks[i].IsActive = false
		c.Weeks[i].IsCompleted = true
	}
	return true, nil
}

// --- participations ---

func (s *MemoryStore) CreateParticipationIfAbsent(_ context.Context, p *models.Participation) (*models.Participation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participations {
		if existing.UserID == p.UserID && existing.CompetitionID == p.CompetitionID {
			return cloneParticipation(existing), false, nil
		}
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.participations[p.ID] = cloneParticipation(p)
	return cloneParticipation(p), true, nil
}

func (s *MemoryStore) GetParticipation(_ context.Context, id string) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneParticipation(p), nil
}

func (s *MemoryStore) FindParticipation(_ context.Context, userID, competitionID string) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participations {
		if p.UserID == userID && p.CompetitionID == competitionID {
			return cloneParticipation(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListParticipationsByCompetition(_ context.Context, competitionID string) ([]models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participation
	for _, p := range s.participations {
		if p.CompetitionID == competitionID {
			out = append(out, *cloneParticipation(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListParticipationsByUser(_ context.Context, userID string) ([]models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participation
	for _, p := range s.participations {
		if p.UserID == userID {
			out = append(out, *cloneParticipation(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

func (s *MemoryStore) CountParticipations(_ context.Context, competitionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.participations {
		if p.CompetitionID == competitionID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateParticipation(_ context.Context, id string, mutate func(p *models.Participation) (bool, error)) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.participations[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneParticipation(stored)
	changed, err := mutate(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return cloneParticipation(stored), nil
	}
	working.UpdatedAt = s.now()
	for i := range working.Predictions {
		working.Predictions[i].ParticipationID = working.ID
	}
	s.participations[id] = cloneParticipation(working)
	return working, nil
}

func (s *MemoryStore) DeleteParticipation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participations[id]; !ok {
		return ErrNotFound
	}
	delete(s.participations, id)
	return nil
}

// --- notifications ---

func (s *MemoryStore) CreateNotifications(_ context.Context, ns []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, n := range ns {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		n.UpdatedAt = now
		s.notifications = append(s.notifications, n)
	}
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, q NotificationQuery) ([]models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (q.UnreadOnly && n.IsRead) {
			continue
		}
		matched = append(matched, n)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return []models.Notification{}, total, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) ListNotificationsSince(_ context.Context, userID string, since time.Time) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID && n.CreatedAt.After(since) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, x := range s.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.notifications {
		if s.notifications[i].UserID == userID && !s.notifications[i].IsRead {
			s.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notifications[:0]
	var removed int64
	for _, n := range s.notifications {
		if n.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	s.notifications = kept
	return removed, nil
}

// --- players ---

func (s *MemoryStore) GetPlayer(_ context.Context, id string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	if p.Lives != nil {
		l := *p.Lives
		out.Lives = &l
	}
	return &out, nil
}

func (s *MemoryStore) UpsertPlayers(_ context.Context, players []models.Player) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, p := range players {
		np := p
		if p.Lives != nil {
			l := *p.Lives
			np.Lives = &l
		}
		if np.UpdatedAt.IsZero() {
			np.UpdatedAt = now
		}
		if existing, ok := s.players[p.ID]; ok {
			np.CreatedAt = existing.CreatedAt
		} else if np.CreatedAt.IsZero() {
			np.CreatedAt = now
		}
		s.players[p.ID] = &np
	}
	return len(players), nil
}

func (s *MemoryStore) LatestPlayerUpdate(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	for _, p := range s.players {
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}
	return latest, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
