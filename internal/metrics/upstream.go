// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpdgate_upstream_requests_total",
		Help: "Outbound requests by target (content_detail, redirect, manifest, segment) and status class.",
	}, []string{"target", "status"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpdgate_upstream_request_duration_seconds",
		Help:    "Outbound request latency by target.",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})

	upstreamThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpdgate_upstream_throttled_total",
		Help: "Outbound requests rejected by the local rate limiter, by target.",
	}, []string{"target"})
)

// RecordUpstream counts an outbound request. status 0 means a transport error.
func RecordUpstream(target string, status int, d time.Duration) {
	upstreamRequests.WithLabelValues(target, statusClass(status)).Inc()
	upstreamDuration.WithLabelValues(target).Observe(d.Seconds())
}

func IncUpstreamThrottled(target string) { upstreamThrottled.WithLabelValues(target).Inc() }

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
