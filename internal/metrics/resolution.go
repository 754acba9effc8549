// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeSkipped  = "skipped"
	OutcomeDegraded = "degraded"
	OutcomeAborted  = "aborted"
)

var (
	resolutionStage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpdgate_resolution_stage_total",
		Help: "Resolution pipeline stage executions by stage and outcome (ok, skipped, degraded, aborted).",
	}, []string{"stage", "outcome"})

	resolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpdgate_resolution_duration_seconds",
		Help:    "End-to-end manifest resolution latency by result.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"result"})

	resolutionShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpdgate_resolution_shared_total",
		Help: "Resolutions answered from a concurrent in-flight resolution of the same content id.",
	})
)

// RecordStage counts one execution of a pipeline stage.
func RecordStage(stage, outcome string) {
	resolutionStage.WithLabelValues(stage, outcome).Inc()
}

// ObserveResolution records the latency of a finished resolution.
func ObserveResolution(result string, d time.Duration) {
	resolutionDuration.WithLabelValues(result).Observe(d.Seconds())
}

func IncResolutionShared() { resolutionShared.Inc() }
