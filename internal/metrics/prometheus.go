// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the run tracker.
var (
	// Counters.
	AchievementsUnlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Total number of achievements unlocked",
		},
		[]string{"kind"},
	)

	AchievementsRevokedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_revoked_total",
			Help: "Total number of achievements revoked",
		},
		[]string{"kind"},
	)

	XPGrantedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xp_granted_total",
			Help: "Total XP credited across all users (gross, before revocations)",
		},
	)

	VerifiedGrantsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verified_grants_total",
			Help: "Total number of achievements marked verified",
		},
	)

	VerifiedRevokesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verified_revokes_total",
			Help: "Total number of verified markers cleared",
		},
	)

	ReconcileUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_units_total",
			Help: "Units of work processed by reconciliation jobs",
		},
		[]string{"job", "status"},
	)

	// Histograms.
	EvaluationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_duration_seconds",
			Help:    "Duration of a single (user, map) achievement evaluation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

// RecordUnlock increments the unlock counter for an achievement kind.
func RecordUnlock(kind string) {
	AchievementsUnlockedTotal.WithLabelValues(kind).Inc()
}

// RecordRevoke increments the revoke counter for an achievement kind.
func RecordRevoke(kind string) {
	AchievementsRevokedTotal.WithLabelValues(kind).Inc()
}

// RecordXPGranted adds credited XP to the gross counter.
func RecordXPGranted(xp int) {
	if xp > 0 {
		XPGrantedTotal.Add(float64(xp))
	}
}

// RecordVerifiedGrants counts achievements newly marked verified.
func RecordVerifiedGrants(n int) {
	VerifiedGrantsTotal.Add(float64(n))
}

// RecordVerifiedRevokes counts verified markers cleared.
func RecordVerifiedRevokes(n int) {
	VerifiedRevokesTotal.Add(float64(n))
}

// RecordReconcileUnit counts one unit of reconciliation work.
func RecordReconcileUnit(job string, failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	ReconcileUnitsTotal.WithLabelValues(job, status).Inc()
}

// ObserveEvaluation records the duration of one evaluation pass.
func ObserveEvaluation(d time.Duration) {
	EvaluationDurationSeconds.Observe(d.Seconds())
}
