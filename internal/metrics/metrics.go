// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttendanceUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kidshive",
		Subsystem: "attendance",
		Name:      "upserts_total",
		Help:      "Attendance upserts by status and result.",
	}, []string{"status", "result"})

	AttendanceUpsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kidshive",
		Subsystem: "attendance",
		Name:      "upsert_duration_seconds",
		Help:      "Time spent in the attendance upsert transaction.",
		Buckets:   prometheus.DefBuckets,
	})

	AttendanceRangeQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kidshive",
		Subsystem: "attendance",
		Name:      "range_queries_total",
		Help:      "Attendance range reads by result.",
	}, []string{"result"})

	DailyLogsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kidshive",
		Subsystem: "attendance",
		Name:      "daily_logs_discarded_total",
		Help:      "Days whose meals, naps or nappy changes were dropped by a status change.",
	})

	DiscardLogsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kidshive",
		Subsystem: "worker",
		Name:      "discard_logs_total",
		Help:      "Discarded daily log notifications acknowledged by the queue consumer, by result.",
	}, []string{"result"})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)
