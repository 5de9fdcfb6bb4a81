package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PassesTotal counts completed evaluation passes per execution context.
	PassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_passes_total",
			Help: "Total number of completed evaluation passes",
		},
		[]string{"context"},
	)
	AlertsEvaluatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_evaluated_total",
			Help: "Total number of alert evaluations",
		},
	)
	AlertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Total number of alert state transitions",
		},
		[]string{"condition_type"},
	)
	NotificationsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications persisted",
		},
	)
	NotificationsDedupedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_deduped_total",
			Help: "Total number of notifications skipped by the dedup key",
		},
	)
	FetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_retries_total",
			Help: "Total number of provider fetch retries",
		},
	)
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_failures_total",
			Help: "Total number of provider fetches that exhausted retries",
		},
		[]string{"kind"},
	)
	SnapshotsUpsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshots_upserted_total",
			Help: "Total number of snapshots written to the store",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PassesTotal,
		AlertsEvaluatedTotal,
		AlertsTriggeredTotal,
		NotificationsCreatedTotal,
		NotificationsDedupedTotal,
		FetchRetriesTotal,
		FetchFailuresTotal,
		SnapshotsUpsertedTotal,
	)
}
