// workers/match_automation_worker.go
package workers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"survivor-pool/metrics"
	"survivor-pool/services"

	"github.com/go-co-op/gocron/v2"
)

// MatchAutomationWorker owns the scheduler that drives match automation.
// It is constructed explicitly and started/stopped by the host process.
type MatchAutomationWorker struct {
	automation    *services.AutomationService
	notifications *services.NotificationService
	metrics       *metrics.Recorder

	tickInterval   time.Duration
	statusInterval time.Duration
	retention      time.Duration

	mu    sync.Mutex
	sched gocron.Scheduler
}

type MatchAutomationWorkerConfig struct {
	TickInterval   time.Duration
	StatusInterval time.Duration
	// Retention for notification cleanup; zero disables the cleanup job.
	Retention time.Duration
}

func NewMatchAutomationWorker(automation *services.AutomationService, notifications *services.NotificationService, rec *metrics.Recorder, cfg MatchAutomationWorkerConfig) *MatchAutomationWorker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = time.Minute
	}
	return &MatchAutomationWorker{
		automation:     automation,
		notifications:  notifications,
		metrics:        rec,
		tickInterval:   cfg.TickInterval,
		statusInterval: cfg.StatusInterval,
		retention:      cfg.Retention,
	}
}

// Start runs the boot resync, then schedules the recurring jobs. Calling Start
// on a running worker does nothing.
func (w *MatchAutomationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sched != nil {
		return nil
	}

	if _, err := w.automation.Resync(ctx); err != nil {
		log.Printf("[Automation] ⚠️ Boot resync failed: %v", err)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	// Ticks never overlap; a slow tick pushes the next one back.
	if _, err := sched.NewJob(
		gocron.DurationJob(w.tickInterval),
		gocron.NewTask(func() {
			if _, err := w.automation.Tick(ctx); err != nil {
				log.Printf("[Automation] Tick failed: %v", err)
			}
		}),
		gocron.WithName("match-automation-tick"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return errors.Join(err, sched.Shutdown())
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(w.statusInterval),
		gocron.NewTask(func() { w.automation.LogMatchStatus(ctx) }),
		gocron.WithName("match-status-log"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return errors.Join(err, sched.Shutdown())
	}

	if w.retention > 0 && w.notifications != nil {
		if _, err := sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
			gocron.NewTask(func() {
				n, err := w.notifications.Cleanup(ctx, w.retention)
				if err != nil {
					log.Printf("[Automation] Notification cleanup failed: %v", err)
					return
				}
				w.metrics.NotificationsPurged(n)
			}),
			gocron.WithName("notification-cleanup"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return errors.Join(err, sched.Shutdown())
		}
	}

	sched.Start()
	w.sched = sched
	log.Printf("✅ Match automation running (tick every %s, status every %s)", w.tickInterval, w.statusInterval)
	return nil
}

// Stop shuts the scheduler down and waits for running jobs. Safe to call twice.
func (w *MatchAutomationWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sched == nil {
		return nil
	}
	err := w.sched.Shutdown()
	w.sched = nil
	log.Println("⏹️ Match automation stopped")
	return err
}
