package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"survivor-pool/config"
	"survivor-pool/handlers"
	"survivor-pool/metrics"
	"survivor-pool/middleware"
	"survivor-pool/seed"
	"survivor-pool/services"
	"survivor-pool/store"
	"survivor-pool/utils"
	"survivor-pool/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "survivor-pool",
		Usage: "survivor prediction pool service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to an optional YAML config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and the match automation",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "demo", Usage: "seed a demo competition on boot"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrate,
			},
			{
				Name:  "seed",
				Usage: "insert demo players and a competition",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "players", Value: 8},
					&cli.IntFlag{Name: "weeks", Value: 3},
					&cli.IntFlag{Name: "matches", Value: 2, Usage: "matches per week"},
					&cli.DurationFlag{Name: "spacing", Value: 5 * time.Minute, Usage: "time between kickoffs"},
					&cli.Int64Flag{Name: "seed", Usage: "faker seed (0 uses the clock)"},
				},
				Action: seedCmd,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// openStore connects the configured backend. Postgres schemas are migrated on
// open.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Println("⚠️  Using in-memory storage; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := store.OpenPostgres(cfg.Database.URL, cfg.Database.Verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return store.NewGormStore(db), closeFn, nil
}

type app struct {
	store          store.Store
	metrics        *metrics.Recorder
	notifications  *services.NotificationService
	automation     *services.AutomationService
	competitions   *services.CompetitionService
	participations *services.ParticipationService
}

func build(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) (*app, error) {
	clock := services.SystemClock{}
	rec := metrics.NewRecorder()

	notifications := services.NewNotificationService(st, cfg.Notifications.Language, clock, logger)

	var archiver services.StandingsArchiver
	if r2cfg := utils.R2Config(cfg.R2); r2cfg.Enabled() {
		client, err := utils.NewR2Client(ctx, r2cfg)
		if err != nil {
			return nil, err
		}
		archiver = utils.NewR2StandingsArchive(client, r2cfg)
		log.Printf("✅ Final standings will be archived to R2 bucket %s", r2cfg.Bucket)
	}

	automation := services.NewAutomationService(st, st, services.AutomationOptions{
		Results:          services.NewRandomResultGenerator(cfg.Automation.ResultSeed),
		Notifier:         notifications,
		Archiver:         archiver,
		Clock:            clock,
		Metrics:          rec,
		Logger:           logger,
		MatchDuration:    cfg.Automation.MatchDuration,
		SyncGrace:        cfg.Automation.SyncGrace,
		PointsPerCorrect: cfg.Game.PointsPerCorrect,
	})

	return &app{
		store:          st,
		metrics:        rec,
		notifications:  notifications,
		automation:     automation,
		competitions:   services.NewCompetitionService(st, st, clock, cfg.Automation.SyncGrace, cfg.Game.DefaultMaxLives, logger),
		participations: services.NewParticipationService(st, st, st, clock, logger),
	}, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	a, err := build(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	if c.Bool("demo") {
		if _, err := seed.Run(ctx, seed.NewGenerator(cfg.Automation.ResultSeed), st, a.competitions, a.participations, seed.Options{Weeks: 3, MatchesPerWeek: 2}); err != nil {
			log.Printf("⚠️  Demo seed failed: %v", err)
		}
	}

	var automationWorker *workers.MatchAutomationWorker
	if cfg.Automation.Enabled {
		automationWorker = workers.NewMatchAutomationWorker(a.automation, a.notifications, a.metrics, workers.MatchAutomationWorkerConfig{
			TickInterval:   cfg.Automation.TickInterval,
			StatusInterval: cfg.Automation.StatusInterval,
			Retention:      cfg.Notifications.Retention,
		})
		if err := automationWorker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start match automation: %w", err)
		}
		defer func() {
			if err := automationWorker.Stop(); err != nil {
				log.Printf("Match automation shutdown error: %v", err)
			}
		}()
	} else {
		log.Println("⚠️  Match automation disabled (AUTOMATION_ENABLED=false)")
	}

	if cfg.Sync.ServiceURL != "" {
		syncWorker := workers.NewPlayerSyncWorker(st, cfg.Sync.ServiceURL, cfg.Sync.EndpointPath, cfg.Server.GatewayToken, cfg.Sync.Interval, utils.NewHTTPClient(30*time.Second), a.metrics)
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL not set, player sync disabled; joins use each competition's max lives")
	}

	var validator middleware.TokenValidator
	if cfg.Auth.ServiceURL != "" {
		validator = services.NewAuthServiceClient(cfg.Auth.ServiceURL, cfg.Auth.ServiceToken, utils.NewHTTPClient(10*time.Second))
	}

	server := fiber.New(fiber.Config{
		AppName: "survivor-pool",
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed, except health checks and metrics scrapes
	server.Use(middleware.GatewayAuthMiddleware(cfg.Server.GatewayToken, handlers.HealthPath, handlers.MetricsPath))

	allowedOrigins := strings.Join(cfg.Server.AllowedOrigins, ",")
	server.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.SetupHealthRoutes(server, a.metrics.Registry())
	handlers.SetupNotificationRoutes(server, handlers.NewNotificationHandler(a.notifications, 0), validator)
	handlers.SetupCompetitionRoutes(server, handlers.NewCompetitionHandler(a.competitions, a.participations, a.automation))

	go func() {
		if err := server.Listen(cfg.Server.Addr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", cfg.Server.Addr)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	return server.ShutdownWithTimeout(10 * time.Second)
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate needs the postgres driver, got %q", cfg.Database.Driver)
	}
	db, err := store.OpenPostgres(cfg.Database.URL, cfg.Database.Verbose)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Database schema is up to date")
	return nil
}

func seedCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverMemory {
		return fmt.Errorf("seeding the memory driver has no effect; use `serve --demo` instead")
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	a, err := build(c.Context, cfg, st, newLogger())
	if err != nil {
		return err
	}
	_, err = seed.Run(c.Context, seed.NewGenerator(c.Int64("seed")), st, a.competitions, a.participations, seed.Options{
		Players:        c.Int("players"),
		Weeks:          c.Int("weeks"),
		MatchesPerWeek: c.Int("matches"),
		Spacing:        c.Duration("spacing"),
	})
	return err
}
