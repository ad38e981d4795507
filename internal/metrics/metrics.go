// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal counts resolution passes, labelled by outcome
	// ("today", "tomorrow", "empty").
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusboard_refresh_total",
		Help: "Number of calendar resolution passes",
	}, []string{"header"})

	// CalendarFailures counts calendars that contributed nothing to a pass
	// because fetching or parsing failed.
	CalendarFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusboard_calendar_failures_total",
		Help: "Number of calendar fetch/parse failures",
	}, []string{"stage"})

	// CachedFetches counts fetches answered from the on-disk body cache.
	CachedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusboard_calendar_cached_fetches_total",
		Help: "Number of calendar fetches served from the local cache",
	})

	// IterationCapHits counts recurring events whose rule iteration was cut
	// off by the safety cap.
	IterationCapHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusboard_recurrence_iteration_cap_total",
		Help: "Number of recurrence evaluations stopped by the iteration cap",
	})

	// SkippedEvents counts events dropped because their data was unusable.
	SkippedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusboard_skipped_events_total",
		Help: "Number of events skipped because of malformed recurrence data",
	})

	// DisplayedEvents is the number of events in the latest selection.
	DisplayedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "statusboard_displayed_events",
		Help: "Number of events in the current selection",
	})

	// RefreshDuration observes how long a full pass takes.
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "statusboard_refresh_duration_seconds",
		Help:    "Duration of a full fetch and resolution pass",
		Buckets: prometheus.DefBuckets,
	})
)
