// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageCallsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_calls_completed_total",
			Help: "Total number of stage calls that produced a usable result",
		},
		[]string{"stage"},
	)

	StageCallsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_calls_failed_total",
			Help: "Total number of stage calls that failed",
		},
		[]string{"stage", "error_code"},
	)

	StageCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_call_duration_seconds",
			Help:    "Duration of stage calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"stage"},
	)

	InferenceRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_retries_total",
			Help: "Retried inference backend requests",
		},
		[]string{"stage"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by cache name and result (hit, miss, shared)",
		},
		[]string{"cache", "result"},
	)

	ItemsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_items_dropped_total",
			Help: "Array elements dropped because they failed validation",
		},
		[]string{"stage"},
	)

	SlotsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_slots_scheduled_total",
			Help: "Meeting slots placed by the scheduler",
		},
	)

	CandidatesUnscheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_candidates_unscheduled_total",
			Help: "Candidates the scheduler could not place",
		},
	)
)
