package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcileRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fire_reconcile_rows_total",
		Help: "Result rows processed by the reconciler, by outcome",
	}, []string{"outcome"})

	UnresolvedResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fire_reconcile_unresolved_total",
		Help: "Reconciled results without a resolvable manager",
	})

	LoadRecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fire_load_recompute_duration_seconds",
		Help:    "Duration of a full manager load recomputation",
		Buckets: prometheus.DefBuckets,
	})

	AnalyticsQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fire_analytics_queries_total",
		Help: "Aggregation requests by result kind",
	}, []string{"kind"})

	StaleSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fire_analytics_stale_snapshots_total",
		Help: "Aggregations served from a fallback snapshot because storage was unavailable",
	})
)

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "fire_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})
