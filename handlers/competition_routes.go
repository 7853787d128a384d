// handlers/competition_routes.go
package handlers

import (
	"strconv"
	"strings"
	"time"

	"survivor-pool/middleware"
	"survivor-pool/models"
	"survivor-pool/services"

	"github.com/gofiber/fiber/v2"
)

type CompetitionHandler struct {
	competitions   *services.CompetitionService
	participations *services.ParticipationService
	automation     *services.AutomationService
}

func NewCompetitionHandler(competitions *services.CompetitionService, participations *services.ParticipationService, automation *services.AutomationService) *CompetitionHandler {
	return &CompetitionHandler{
		competitions:   competitions,
		participations: participations,
		automation:     automation,
	}
}

func SetupCompetitionRoutes(app fiber.Router, h *CompetitionHandler) {
	// 🔓 Public reads (gateway auth still applies)
	app.Get("/competitions", h.List)
	app.Get("/competitions/:id", h.Get)
	app.Get("/competitions/:id/matches/current", h.CurrentWeekMatches)
	app.Get("/competitions/:id/matches/:match_id", h.GetMatch)
	app.Get("/competitions/:id/matches/:match_id/status", h.MatchStatus)
	app.Get("/competitions/:id/matches/:match_id/stats", h.PredictionStats)
	app.Get("/competitions/:id/leaders", h.Leaders)

	// 🔐 Player routes
	user := middleware.UserContextMiddleware()
	app.Post("/competitions/:id/join", user, h.Join)
	app.Get("/competitions/:id/participation", user, h.MyParticipation)
	app.Delete("/competitions/:id/participation", user, h.Leave)
	app.Post("/competitions/:id/predictions", user, h.SubmitPrediction)
	app.Get("/users/me/participations", user, h.MyParticipations)

	// 🔒 Admin routes
	admin := app.Group("/admin", user, middleware.RequireRole(middleware.RoleAdmin))
	admin.Post("/competitions", h.Create)
	admin.Get("/competitions/:id/participations", h.Participations)
	admin.Post("/competitions/:id/advance-week", h.AdvanceWeek)
	admin.Post("/competitions/:id/weeks/:week/evaluate", h.EvaluateWeek)
	admin.Post("/competitions/:id/matches/:match_id/finish", h.FinishMatch)
	admin.Put("/participations/:id/lives", h.ResetLives)
	admin.Post("/automation/tick", h.Tick)
	admin.Get("/automation/status", h.AutomationStatus)
}

func (h *CompetitionHandler) List(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)
	sums, err := h.competitions.List(c.UserContext(), activeOnly)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(competitionSummaries(sums))
}

func (h *CompetitionHandler) Get(c *fiber.Ctx) error {
	comp, err := h.competitions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newCompetitionView(comp, true))
}

func (h *CompetitionHandler) CurrentWeekMatches(c *fiber.Ctx) error {
	ms, err := h.competitions.GetCurrentWeekMatches(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(matchViews(ms))
}

func (h *CompetitionHandler) GetMatch(c *fiber.Ctx) error {
	m, err := h.competitions.GetMatch(c.UserContext(), c.Params("id"), c.Params("match_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newMatchView(*m))
}

func (h *CompetitionHandler) MatchStatus(c *fiber.Ctx) error {
	st, err := h.competitions.MatchStatus(c.UserContext(), c.Params("id"), c.Params("match_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newMatchStatusView(st))
}

func (h *CompetitionHandler) PredictionStats(c *fiber.Ctx) error {
	st, err := h.participations.MatchPredictionStats(c.UserContext(), c.Params("id"), c.Params("match_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(st)
}

func (h *CompetitionHandler) Leaders(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", services.DefaultLeadersLimit)
	ps, err := h.participations.Leaders(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(leaders(ps))
}

func (h *CompetitionHandler) Join(c *fiber.Ctx) error {
	p, created, err := h.participations.Join(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(p)
}

func (h *CompetitionHandler) MyParticipation(c *fiber.Ctx) error {
	p, err := h.participations.Mine(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (h *CompetitionHandler) Leave(c *fiber.Ctx) error {
	if err := h.participations.Leave(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CompetitionHandler) MyParticipations(c *fiber.Ctx) error {
	ps, err := h.participations.ForUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if ps == nil {
		ps = []models.Participation{}
	}
	return c.JSON(ps)
}

type predictionRequest struct {
	Week         int    `json:"week"`
	MatchID      string `json:"match_id"`
	SelectedSide string `json:"selected_side"`
}

func (h *CompetitionHandler) SubmitPrediction(c *fiber.Ctx) error {
	var req predictionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.participations.SubmitPrediction(c.UserContext(), services.PredictionRequest{
		UserID:        middleware.UserID(c),
		CompetitionID: c.Params("id"),
		Week:          req.Week,
		MatchID:       req.MatchID,
		SelectedSide:  models.Outcome(strings.ToLower(strings.TrimSpace(req.SelectedSide))),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

type teamRequest struct {
	Name string `json:"name"`
	Flag string `json:"flag"`
}

type matchRequest struct {
	ID              string      `json:"id"`
	Home            teamRequest `json:"home"`
	Visitor         teamRequest `json:"visitor"`
	ScheduledAt     time.Time   `json:"scheduled_at"`
	BettingDeadline *time.Time  `json:"betting_deadline"`
}

type weekRequest struct {
	Number    int            `json:"number"`
	Name      string         `json:"name"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Matches   []matchRequest `json:"matches"`
}

type competitionRequest struct {
	Name            string        `json:"name"`
	StartDate       time.Time     `json:"start_date"`
	EndDate         *time.Time    `json:"end_date"`
	MaxLives        int           `json:"max_lives"`
	MaxParticipants int           `json:"max_participants"`
	Weeks           []weekRequest `json:"weeks"`
}

func (r competitionRequest) input() services.CompetitionInput {
	in := services.CompetitionInput{
		Name:            r.Name,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		MaxLives:        r.MaxLives,
		MaxParticipants: r.MaxParticipants,
	}
	for _, w := range r.Weeks {
		wi := services.WeekInput{Number: w.Number, Name: w.Name, StartDate: w.StartDate, EndDate: w.EndDate}
		for _, m := range w.Matches {
			wi.Matches = append(wi.Matches, services.MatchInput{
				ID:              m.ID,
				Home:            models.Team{Name: m.Home.Name, Flag: m.Home.Flag},
				Visitor:         models.Team{Name: m.Visitor.Name, Flag: m.Visitor.Flag},
				ScheduledAt:     m.ScheduledAt,
				BettingDeadline: m.BettingDeadline,
			})
		}
		in.Weeks = append(in.Weeks, wi)
	}
	return in
}

func (h *CompetitionHandler) Create(c *fiber.Ctx) error {
	var req competitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	comp, err := h.competitions.CreateCompetition(c.UserContext(), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newCompetitionView(comp, true))
}

func (h *CompetitionHandler) Participations(c *fiber.Ctx) error {
	ps, err := h.participations.ForCompetition(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if ps == nil {
		ps = []models.Participation{}
	}
	return c.JSON(ps)
}

func (h *CompetitionHandler) AdvanceWeek(c *fiber.Ctx) error {
	comp, err := h.competitions.AdvanceWeek(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newCompetitionView(comp, true))
}

func (h *CompetitionHandler) EvaluateWeek(c *fiber.Ctx) error {
	week, err := strconv.Atoi(c.Params("week"))
	if err != nil || week < 1 {
		return badRequest(c, "week must be a positive integer")
	}
	if err := h.participations.EvaluateWeekPredictions(c.UserContext(), c.Params("id"), week); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

type finishRequest struct {
	HomeScore    *int `json:"home_score"`
	VisitorScore *int `json:"visitor_score"`
}

// FinishMatch ends a match now. With both scores in the body they become the
// result; an empty body lets the result source decide.
func (h *CompetitionHandler) FinishMatch(c *fiber.Ctx) error {
	var req finishRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	var supplied *models.MatchResult
	if req.HomeScore != nil || req.VisitorScore != nil {
		if req.HomeScore == nil || req.VisitorScore == nil {
			return badRequest(c, "home_score and visitor_score must be sent together")
		}
		supplied = &models.MatchResult{HomeScore: *req.HomeScore, VisitorScore: *req.VisitorScore}
	}
	m, err := h.automation.FinishMatch(c.UserContext(), c.Params("id"), c.Params("match_id"), supplied)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newMatchView(*m))
}

type livesRequest struct {
	Lives *int `json:"lives"`
}

func (h *CompetitionHandler) ResetLives(c *fiber.Ctx) error {
	var req livesRequest
	if err := c.BodyParser(&req); err != nil || req.Lives == nil {
		return badRequest(c, "lives is required")
	}
	p, err := h.participations.ResetLives(c.UserContext(), c.Params("id"), *req.Lives)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (h *CompetitionHandler) Tick(c *fiber.Ctx) error {
	report, err := h.automation.Tick(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"competitions": report.Competitions,
		"failed":       report.Failed,
		"started":      report.Started,
		"finished":     report.Finished,
		"completed":    report.Completed,
	})
}

func (h *CompetitionHandler) AutomationStatus(c *fiber.Ctx) error {
	sums, err := h.automation.StatusSummaries(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusSummaries(sums))
}
