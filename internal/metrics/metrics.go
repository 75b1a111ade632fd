// Package metrics holds the prometheus collectors for the report pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ReportsSubmitted counts accepted uploads.
	ReportsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roadwatch",
		Name:      "reports_submitted_total",
		Help:      "Total number of reports accepted by the upload endpoint.",
	})

	// ReportsProcessed counts reports reaching a terminal status, labeled by status.
	ReportsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roadwatch",
		Name:      "reports_processed_total",
		Help:      "Total number of reports that finished background processing, labeled by final status.",
	}, []string{"status"})

	// ProcessingDurationSeconds is wall time of one background unit.
	ProcessingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roadwatch",
		Name:      "processing_duration_seconds",
		Help:      "Time from background start to terminal status for a report.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// DetectorCalls counts calls to the external detection backend.
	DetectorCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roadwatch",
		Name:      "detector_calls_total",
		Help:      "Total number of detection backend calls, labeled by backend and result.",
	}, []string{"backend", "result"})

	// FallbackDetections counts placeholder substitutions.
	FallbackDetections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roadwatch",
		Name:      "fallback_detections_total",
		Help:      "Total number of times the placeholder detector replaced the real model.",
	})

	// WSSubscribers is the current number of live websocket subscribers.
	WSSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roadwatch",
		Name:      "ws_subscribers",
		Help:      "Current number of connected websocket subscribers.",
	})

	// BroadcastDrops counts subscribers removed after a failed delivery.
	BroadcastDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roadwatch",
		Name:      "broadcast_dropped_subscribers_total",
		Help:      "Total number of subscribers removed because a broadcast delivery failed.",
	})
)

// Register registers the collectors with the default registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ReportsSubmitted,
			ReportsProcessed,
			ProcessingDurationSeconds,
			DetectorCalls,
			FallbackDetections,
			WSSubscribers,
			BroadcastDrops,
		)
	})
}
