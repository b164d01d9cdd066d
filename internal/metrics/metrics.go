// Package metrics holds the Prometheus collectors of the rewards engine.
// They register with the default registry and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventsProcessed counts ReportCreated events by outcome (awarded, duplicate, invalid, failed)
var EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "rewards",
	Name:      "events_processed_total",
	Help:      "ReportCreated events handled, by result",
}, []string{"result"})

// LedgerEntries counts committed ledger entries by kind and reason
var LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "ledger",
	Name:      "entries_total",
	Help:      "Ledger entries appended, by kind and reason",
}, []string{"kind", "reason"})

// PointsAwarded sums points written to the ledger
var PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "ledger",
	Name:      "points_awarded_total",
	Help:      "Points appended to the ledger",
})

// BadgesAwarded counts badge unlocks by badge id
var BadgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "badges",
	Name:      "awarded_total",
	Help:      "Badges unlocked, by badge id",
}, []string{"badge"})

// StatsConflicts counts optimistic version conflicts when saving stats
var StatsConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "stats",
	Name:      "version_conflicts_total",
	Help:      "Stats saves rejected by the version check",
})

// RecalcDiscrepancies counts stats rows overwritten by a full rebuild
var RecalcDiscrepancies = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "recalc",
	Name:      "discrepancies_fixed_total",
	Help:      "Users whose stored stats disagreed with the ledger",
})

// RecalcDuration observes full recalculation runs
var RecalcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "carboniq",
	Subsystem: "recalc",
	Name:      "duration_seconds",
	Help:      "Duration of full recalculation runs",
	Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
})

// RankRecompute observes leaderboard rebuilds by kind (window, full)
var RankRecompute = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "carboniq",
	Subsystem: "leaderboard",
	Name:      "recompute_seconds",
	Help:      "Leaderboard rebuild latency",
	Buckets:   prometheus.DefBuckets,
}, []string{"kind"})

// RankedUsers reports the size of each maintained board
var RankedUsers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "carboniq",
	Subsystem: "leaderboard",
	Name:      "ranked_users",
	Help:      "Entries on a leaderboard",
}, []string{"scope"})

// QueueDepth is the number of events waiting in the dispatcher
var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "carboniq",
	Subsystem: "dispatcher",
	Name:      "queue_depth",
	Help:      "Events queued for processing",
})

// DispatchRetries counts retried processing attempts
var DispatchRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "dispatcher",
	Name:      "retries_total",
	Help:      "Event processing attempts that were retried",
})

// HTTPRequests counts API requests by route and status
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests served",
}, []string{"method", "route", "status"})

// TCPFrames counts ingest frames by outcome
var TCPFrames = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "tcp",
	Name:      "frames_total",
	Help:      "TCP ingest frames, by result",
}, []string{"result"})

// DeadLetters counts events dropped after their final attempt
var DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carboniq",
	Subsystem: "dispatcher",
	Name:      "dead_letters_total",
	Help:      "Events dropped without being applied",
})
