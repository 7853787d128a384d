package services

import (
	"testing"
	"time"

	"survivor-pool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scoredAt = time.Date(2026, 6, 14, 18, 0, 0, 0, time.UTC)

func weekOneMatch() models.Match {
	return models.Match{
		ID:      "m1",
		Week:    1,
		Home:    models.Team{Name: "A"},
		Visitor: models.Team{Name: "B"},
		Status:  models.MatchStatusFinished,
	}
}

func participant(id string, lives int, picks ...models.Outcome) *models.Participation {
	p := &models.Participation{ID: id, UserID: "user-" + id, LivesRemaining: lives}
	for i, side := range picks {
		p.Predictions = append(p.Predictions, models.Prediction{
			ID:              id + "-pick-" + string(rune('a'+i)),
			ParticipationID: id,
			Week:            1,
			MatchID:         "m1",
			SelectedSide:    side,
		})
	}
	return p
}

func mustResult(t *testing.T, home, visitor int) models.MatchResult {
	t.Helper()
	r, err := models.NewMatchResult(home, visitor)
	require.NoError(t, err)
	return r
}

func TestScorer_HomeWinScenario(t *testing.T) {
	m := weekOneMatch()
	r := mustResult(t, 2, 0)
	s := Scorer{}

	p := participant("p", 3, models.OutcomeHome)
	o, changed := s.Score(p, m, r, scoredAt)
	require.True(t, changed)
	assert.Equal(t, 10, o.PointsAwarded)
	assert.Equal(t, 10, p.TotalPoints)
	assert.Equal(t, 3, p.LivesRemaining)
	assert.False(t, p.IsEliminated)
	require.NotNil(t, p.Predictions[0].IsCorrect)
	assert.True(t, *p.Predictions[0].IsCorrect)
	assert.Equal(t, 10, *p.Predictions[0].PointsEarned)

	q := participant("q", 1, models.OutcomeVisitor)
	o, changed = s.Score(q, m, r, scoredAt)
	require.True(t, changed)
	assert.True(t, o.LifeLost)
	assert.Equal(t, 0, q.LivesRemaining)
	assert.True(t, q.IsEliminated)
	require.NotNil(t, q.EliminationWeek)
	assert.Equal(t, 1, *q.EliminationWeek)
	assert.False(t, *q.Predictions[0].IsCorrect)
	assert.Equal(t, 0, *q.Predictions[0].PointsEarned)
}

func TestScorer_DrawSparesNonPredictor(t *testing.T) {
	r := participant("r", 1)
	o, changed := Scorer{}.Score(r, weekOneMatch(), mustResult(t, 1, 1), scoredAt)

	assert.False(t, changed)
	assert.False(t, o.Predicted())
	assert.Equal(t, 1, r.LivesRemaining)
	assert.False(t, r.IsEliminated)
}

func TestScorer_NonPredictorUntouchedOnWin(t *testing.T) {
	r := participant("r", 2)
	_, changed := Scorer{}.Score(r, weekOneMatch(), mustResult(t, 3, 1), scoredAt)

	assert.False(t, changed)
	assert.Equal(t, 2, r.LivesRemaining)
	assert.Zero(t, r.TotalPoints)
}

func TestScorer_AnyCorrectWins(t *testing.T) {
	p := participant("p", 2, models.OutcomeHome, models.OutcomeVisitor)
	o, _ := Scorer{}.Score(p, weekOneMatch(), mustResult(t, 1, 0), scoredAt)

	assert.Equal(t, 1, o.CorrectCount)
	assert.False(t, o.LifeLost)
	assert.Equal(t, 10, p.TotalPoints)
	assert.Equal(t, 2, p.LivesRemaining)
	for _, pr := range p.Predictions {
		assert.True(t, pr.Scored())
	}
}

func TestScorer_DrawPickOnlyCorrectOnDraw(t *testing.T) {
	p := participant("p", 2, models.OutcomeDraw)
	o, _ := Scorer{}.Score(p, weekOneMatch(), mustResult(t, 2, 2), scoredAt)
	assert.Equal(t, 1, o.CorrectCount)

	p = participant("p", 2, models.OutcomeDraw)
	o, _ = Scorer{}.Score(p, weekOneMatch(), mustResult(t, 0, 1), scoredAt)
	assert.True(t, o.LifeLost)
	assert.Equal(t, 1, p.LivesRemaining)
}

func TestScorer_EliminatedSkipped(t *testing.T) {
	week := 1
	p := participant("p", 0, models.OutcomeVisitor)
	p.IsEliminated = true
	p.EliminationWeek = &week

	o, changed := Scorer{}.Score(p, weekOneMatch(), mustResult(t, 2, 0), scoredAt)
	assert.True(t, o.Skipped)
	assert.False(t, changed)
	assert.False(t, p.Predictions[0].Scored())
}

func TestScorer_AlreadyScoredIgnored(t *testing.T) {
	p := participant("p", 2, models.OutcomeVisitor)
	s := Scorer{}
	m := weekOneMatch()
	r := mustResult(t, 2, 0)

	_, changed := s.Score(p, m, r, scoredAt)
	require.True(t, changed)
	_, changed = s.Score(p, m, r, scoredAt.Add(time.Minute))

	assert.False(t, changed)
	assert.Equal(t, 1, p.LivesRemaining, "a life is lost once per match")
	assert.Equal(t, scoredAt, *p.Predictions[0].ScoredAt)
}

func TestScorer_IgnoresOtherMatchesAndWeeks(t *testing.T) {
	p := participant("p", 2)
	p.Predictions = []models.Prediction{
		{ID: "x", Week: 1, MatchID: "m2", SelectedSide: models.OutcomeVisitor},
		{ID: "y", Week: 2, MatchID: "m1", SelectedSide: models.OutcomeVisitor},
	}
	o, changed := Scorer{}.Score(p, weekOneMatch(), mustResult(t, 2, 0), scoredAt)

	assert.False(t, changed)
	assert.False(t, o.Predicted())
}

func TestScorer_WinnerDerivedFromScores(t *testing.T) {
	p := participant("p", 2, models.OutcomeHome)
	corrupt := models.MatchResult{HomeScore: 2, VisitorScore: 0, Winner: models.OutcomeVisitor}
	o, _ := Scorer{}.Score(p, weekOneMatch(), corrupt, scoredAt)

	assert.Equal(t, 1, o.CorrectCount)
}

func TestScorer_CustomPoints(t *testing.T) {
	p := participant("p", 2, models.OutcomeHome)
	o, _ := Scorer{PointsPerCorrect: 3}.Score(p, weekOneMatch(), mustResult(t, 1, 0), scoredAt)
	assert.Equal(t, 3, o.PointsAwarded)
}

func TestScorer_EvaluateIsPure(t *testing.T) {
	p := participant("p", 1, models.OutcomeVisitor)
	before := *p
	_ = Scorer{}.Evaluate(*p, weekOneMatch(), mustResult(t, 2, 0))

	assert.Equal(t, before.LivesRemaining, p.LivesRemaining)
	assert.False(t, p.Predictions[0].Scored())
}
