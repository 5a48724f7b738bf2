// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the pipeline's Prometheus instrumentation:
// one duration histogram labelled by stage ("extract", "resolve", and
// "run" for a whole per-entity run), plus counters for entities
// processed (split by whether the run completed), extractor
// circuit-breaker trips, and anomaly alerts raised.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration records how long each pipeline stage took, per stage
	// name: "extract" and "resolve" for the batch stages, and "run" for
	// one per-entity run (fusion, timeline and prediction timed together).
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campuscore_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// EntitiesProcessed counts resolved entities that completed Run,
	// split by whether they hit the per-entity deadline.
	EntitiesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscore_entities_processed_total",
			Help: "Total number of entities run through the pipeline",
		},
		[]string{"complete"},
	)

	// ExtractorSourceTripped counts circuit-breaker trips per source
	// table during extraction.
	ExtractorSourceTripped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscore_extractor_source_tripped_total",
			Help: "Total number of times a source table's circuit breaker tripped during extraction",
		},
		[]string{"source"},
	)

	// AnomaliesRaised counts anomaly alerts raised by the predictive
	// monitor, by kind.
	AnomaliesRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscore_anomalies_raised_total",
			Help: "Total number of anomaly alerts raised by the predictive monitor",
		},
		[]string{"kind"},
	)
)

// ObserveStage records the duration of one stage invocation.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
