package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// METRICS
// =============================================================================

var runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "comp",
	Subsystem: "engine",
	Name:      "runs_total",
	Help:      "Bonus runs by runner and outcome.",
}, []string{"runner", "outcome"})

var bonusesComputed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "comp",
	Subsystem: "engine",
	Name:      "bonuses_computed_total",
	Help:      "Bonus records created, by kind.",
}, []string{"kind"})

var membersSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "comp",
	Subsystem: "engine",
	Name:      "members_skipped_total",
	Help:      "Members skipped during runs (missing configuration).",
})

var runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "comp",
	Subsystem: "engine",
	Name:      "run_duration_seconds",
	Help:      "Wall time per run.",
	Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
}, []string{"runner"})

var notificationsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "comp",
	Subsystem: "notify",
	Name:      "enqueued_total",
	Help:      "Notifications accepted into the dispatch queue.",
})

var notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "comp",
	Subsystem: "notify",
	Name:      "dropped_total",
	Help:      "Notifications dropped because the queue was full.",
})
