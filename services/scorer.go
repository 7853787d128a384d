package services

import (
	"time"

	"survivor-pool/models"
)

// DefaultPointsPerCorrect is awarded for every correct prediction.
const DefaultPointsPerCorrect = 10

// Verdict is the evaluation of a single prediction.
type Verdict struct {
	PredictionID string
	Selected     models.Outcome
	Correct      bool
	Points       int
}

// ScoreOutcome is what scoring one finished match does to one participation.
type ScoreOutcome struct {
	// Skipped is set for participants who were already eliminated.
	Skipped  bool
	Verdicts []Verdict

	CorrectCount  int
	PointsAwarded int
	LifeLost      bool
	LivesAfter    int
	Eliminated    bool
	// EliminationWeek is the match's week when this outcome eliminated the participant.
	EliminationWeek int
}

// Predicted reports whether the participant had any unscored pick for the match.
func (o ScoreOutcome) Predicted() bool {
	return len(o.Verdicts) > 0
}

// Scorer applies the survivor rules: any correct pick earns points, a match with
// only wrong picks costs one life, no pick costs nothing.
type Scorer struct {
	PointsPerCorrect int
}

func (s Scorer) points() int {
	if s.PointsPerCorrect <= 0 {
		return DefaultPointsPerCorrect
	}
	return s.PointsPerCorrect
}

// Evaluate is pure. It only considers predictions for (m.ID, m.Week) that have
// not been scored yet.
func (s Scorer) Evaluate(p models.Participation, m models.Match, r models.MatchResult) ScoreOutcome {
	out := ScoreOutcome{LivesAfter: p.LivesRemaining}
	if p.IsEliminated {
		out.Skipped = true
		return out
	}

	winner := models.WinnerFromScores(r.HomeScore, r.VisitorScore)
	for _, pr := range p.Predictions {
		if pr.MatchID != m.ID || pr.Week != m.Week || pr.Scored() {
			continue
		}
		v := Verdict{PredictionID: pr.ID, Selected: pr.SelectedSide, Correct: pr.SelectedSide == winner}
		if v.Correct {
			v.Points = s.points()
			out.CorrectCount++
			out.PointsAwarded += v.Points
		}
		out.Verdicts = append(out.Verdicts, v)
	}

	// No pick: nothing happens. On a draw this also protects non-predictors.
	if len(out.Verdicts) == 0 || out.CorrectCount > 0 {
		return out
	}

	out.LifeLost = true
	out.LivesAfter = p.LivesRemaining - 1
	if out.LivesAfter < 0 {
		out.LivesAfter = 0
	}
	if out.LivesAfter == 0 {
		out.Eliminated = true
		out.EliminationWeek = m.Week
	}
	return out
}

// Apply writes an outcome onto p. It reports whether p changed.
func (s Scorer) Apply(p *models.Participation, o ScoreOutcome, at time.Time) bool {
	if o.Skipped || !o.Predicted() {
		return false
	}

	verdicts := make(map[string]Verdict, len(o.Verdicts))
	for _, v := range o.Verdicts {
		verdicts[v.PredictionID] = v
	}
	for i := range p.Predictions {
		v, ok := verdicts[p.Predictions[i].ID]
		if !ok || p.Predictions[i].Scored() {
			continue
		}
		correct, points, scoredAt := v.Correct, v.Points, at
		p.Predictions[i].IsCorrect = &correct
		p.Predictions[i].PointsEarned = &points
		p.Predictions[i].ScoredAt = &scoredAt
	}

	p.TotalPoints += o.PointsAwarded
	if o.LifeLost {
		p.LivesRemaining = o.LivesAfter
		if o.Eliminated {
			week := o.EliminationWeek
			p.IsEliminated = true
			p.EliminationWeek = &week
		}
	}
	p.LastActivityAt = at
	return true
}

// Score evaluates and applies in one step.
func (s Scorer) Score(p *models.Participation, m models.Match, r models.MatchResult, at time.Time) (ScoreOutcome, bool) {
	o := s.Evaluate(*p, m, r)
	return o, s.Apply(p, o, at)
}
