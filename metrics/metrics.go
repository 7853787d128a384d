// Package metrics exposes Prometheus instruments for the automation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "survivor"

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry *prometheus.Registry

	ticks                 *prometheus.CounterVec
	tickDuration          prometheus.Histogram
	matchesStarted        prometheus.Counter
	matchesFinished       *prometheus.CounterVec
	predictionsScored     *prometheus.CounterVec
	livesLost             prometheus.Counter
	eliminations          prometheus.Counter
	competitionsCompleted prometheus.Counter
	notificationsPurged   prometheus.Counter
	playersSynced         prometheus.Counter
}

// NewRecorder registers all instruments on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_ticks_total",
			Help:      "Automation ticks by outcome.",
		}, []string{"outcome"}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "automation_tick_duration_seconds",
			Help:      "Time spent in one automation tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		matchesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Matches moved to in_progress.",
		}),
		matchesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_finished_total",
			Help:      "Matches finished, by result source.",
		}, []string{"source"}),
		predictionsScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_scored_total",
			Help:      "Predictions scored, by correctness.",
		}, []string{"correct"}),
		livesLost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lives_lost_total",
			Help:      "Lives deducted by scoring.",
		}),
		eliminations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eliminations_total",
			Help:      "Participants eliminated.",
		}),
		competitionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "competitions_completed_total",
			Help:      "Competitions deactivated after their last match.",
		}),
		notificationsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_purged_total",
			Help:      "Notifications removed by retention cleanup.",
		}),
		playersSynced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_synced_total",
			Help:      "Players upserted from the profile service.",
		}),
	}
}

// Registry is served on /metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveTick(d time.Duration, failedCompetitions int) {
	if r == nil {
		return
	}
	outcome := "ok"
	if failedCompetitions > 0 {
		outcome = "partial"
	}
	r.ticks.WithLabelValues(outcome).Inc()
	r.tickDuration.Observe(d.Seconds())
}

func (r *Recorder) MatchStarted() {
	if r == nil {
		return
	}
	r.matchesStarted.Inc()
}

// MatchFinished takes "generated" or "supplied".
func (r *Recorder) MatchFinished(source string) {
	if r == nil {
		return
	}
	r.matchesFinished.WithLabelValues(source).Inc()
}

func (r *Recorder) PredictionsScored(correct, incorrect int) {
	if r == nil {
		return
	}
	r.predictionsScored.WithLabelValues("true").Add(float64(correct))
	r.predictionsScored.WithLabelValues("false").Add(float64(incorrect))
}

func (r *Recorder) LifeLost(eliminated bool) {
	if r == nil {
		return
	}
	r.livesLost.Inc()
	if eliminated {
		r.eliminations.Inc()
	}
}

func (r *Recorder) CompetitionCompleted() {
	if r == nil {
		return
	}
	r.competitionsCompleted.Inc()
}

func (r *Recorder) NotificationsPurged(n int64) {
	if r == nil {
		return
	}
	r.notificationsPurged.Add(float64(n))
}

func (r *Recorder) PlayersSynced(n int) {
	if r == nil {
		return
	}
	r.playersSynced.Add(float64(n))
}
