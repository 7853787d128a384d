// Package seed fills a store with a demo competition and players.
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"survivor-pool/models"
	"survivor-pool/services"
	"survivor-pool/store"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

type Generator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewGenerator creates a generator; without a seed it uses the clock.
func NewGenerator(seed ...int64) *Generator {
	var s int64
	if len(seed) > 0 && seed[0] != 0 {
		s = seed[0]
	} else {
		s = time.Now().UnixNano()
	}
	return &Generator{faker: gofakeit.New(uint64(s)), seed: s}
}

func (g *Generator) Seed() int64 { return g.seed }

// Players returns n active players. Lives is left unset so joins fall back to
// the competition's max lives.
func (g *Generator) Players(n int, now time.Time) []models.Player {
	out := make([]models.Player, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Player{
			ID:        uuid.NewString(),
			Username:  g.faker.Username(),
			Email:     g.faker.Email(),
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out
}

func (g *Generator) teams() (models.Team, models.Team) {
	home := models.Team{Name: g.faker.Country(), Flag: g.faker.CountryAbr()}
	visitor := home
	for visitor.Name == home.Name {
		visitor = models.Team{Name: g.faker.Country(), Flag: g.faker.CountryAbr()}
	}
	return home, visitor
}

// Competition builds a competition whose first week kicks off shortly after
// now, so the automation has something to do right away.
func (g *Generator) Competition(now time.Time, weeks, matchesPerWeek int, spacing time.Duration) services.CompetitionInput {
	if weeks < 1 {
		weeks = 1
	}
	if matchesPerWeek < 1 {
		matchesPerWeek = 1
	}
	if spacing <= 0 {
		spacing = 5 * time.Minute
	}

	in := services.CompetitionInput{
		Name:            fmt.Sprintf("%s Survivor Cup", g.faker.City()),
		StartDate:       now,
		MaxLives:        services.DefaultMaxLives,
		MaxParticipants: services.DefaultMaxParticipants,
	}
	kickoff := now.Add(spacing)
	for w := 1; w <= weeks; w++ {
		week := services.WeekInput{Number: w, Name: fmt.Sprintf("Week %d", w), StartDate: kickoff}
		for i := 0; i < matchesPerWeek; i++ {
			home, visitor := g.teams()
			week.Matches = append(week.Matches, services.MatchInput{
				Home:        home,
				Visitor:     visitor,
				ScheduledAt: kickoff,
			})
			kickoff = kickoff.Add(spacing)
		}
		week.EndDate = kickoff
		in.Weeks = append(in.Weeks, week)
	}
	return in
}

func (g *Generator) side() models.Outcome {
	return models.Outcomes[g.faker.Number(0, len(models.Outcomes)-1)]
}

type Options struct {
	Players        int
	Weeks          int
	MatchesPerWeek int
	Spacing        time.Duration
	Now            time.Time
}

// Run creates the players and a competition, joins every player and places a
// random pick on each open match of the first week.
func Run(ctx context.Context, g *Generator, players store.PlayerStore, competitions *services.CompetitionService, participations *services.ParticipationService, opts Options) (*models.Competition, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Players <= 0 {
		opts.Players = 8
	}

	ps := g.Players(opts.Players, opts.Now)
	if _, err := players.UpsertPlayers(ctx, ps); err != nil {
		return nil, fmt.Errorf("seed players: %w", err)
	}

	comp, err := competitions.CreateCompetition(ctx, g.Competition(opts.Now, opts.Weeks, opts.MatchesPerWeek, opts.Spacing))
	if err != nil {
		return nil, fmt.Errorf("seed competition: %w", err)
	}

	matches, err := competitions.GetCurrentWeekMatches(ctx, comp.ID)
	if err != nil {
		return nil, err
	}

	predictions := 0
	for _, p := range ps {
		if _, _, err := participations.Join(ctx, p.ID, comp.ID); err != nil {
			log.Printf("[SEED] ⚠️ %s could not join: %v", p.Username, err)
			continue
		}
		for _, m := range matches {
			_, err := participations.SubmitPrediction(ctx, services.PredictionRequest{
				UserID:        p.ID,
				CompetitionID: comp.ID,
				Week:          m.Week,
				MatchID:       m.ID,
				SelectedSide:  g.side(),
			})
			if err != nil {
				log.Printf("[SEED] ⚠️ pick for %s on %s rejected: %v", p.Username, m.Label(), err)
				continue
			}
			predictions++
		}
	}

	log.Printf("[SEED] ✅ %q: %d players, %d weeks, %d predictions (seed %d)",
		comp.Name, len(ps), comp.TotalWeeks, predictions, g.Seed())
	return comp, nil
}
