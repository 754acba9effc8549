// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mpdgate_build_info",
		Help: "Build metadata, always 1",
	}, []string{"version", "commit"})

	sessionTeardowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpdgate_session_teardowns_total",
		Help: "Logouts observed by the session watcher, by cache clear outcome",
	}, []string{"outcome"})
)

// SetBuildInfo publishes the running version.
func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

// RecordSessionTeardown counts a logout and whether the cache clear worked.
func RecordSessionTeardown(err error) {
	sessionTeardowns.WithLabelValues(outcomeOf(err)).Inc()
}
