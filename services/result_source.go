package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"survivor-pool/models"
)

// ResultSource produces a result for a match that has to finish without one
// being supplied.
type ResultSource interface {
	ResultFor(ctx context.Context, m models.Match) (models.MatchResult, error)
}

// RandomResultGenerator picks home, visitor or draw uniformly, then a
// scoreline consistent with it.
type RandomResultGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomResultGenerator(seed int64) *RandomResultGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomResultGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *RandomResultGenerator) ResultFor(_ context.Context, _ models.Match) (models.MatchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	outcome := models.Outcomes[g.rng.Intn(len(models.Outcomes))]
	var home, visitor int
	switch outcome {
	case models.OutcomeDraw:
		goals := g.rng.Intn(4) // 0-3 each
		home, visitor = goals, goals
	default:
		winnerGoals := g.rng.Intn(3) + 1 // 1-3
		loserGoals := g.rng.Intn(winnerGoals)
		if outcome == models.OutcomeHome {
			home, visitor = winnerGoals, loserGoals
		} else {
			home, visitor = loserGoals, winnerGoals
		}
	}
	return models.NewMatchResult(home, visitor)
}

// FixedResultSource always returns the same scoreline.
type FixedResultSource struct {
	HomeScore    int
	VisitorScore int
}

func (f FixedResultSource) ResultFor(_ context.Context, _ models.Match) (models.MatchResult, error) {
	return models.NewMatchResult(f.HomeScore, f.VisitorScore)
}
