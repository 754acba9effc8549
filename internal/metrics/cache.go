// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheExpired    = "expired"
	CacheStoreError = "store_error"
)

var (
	urlCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpdgate_url_cache_lookups_total",
		Help: "Playback URL cache lookups by backend and outcome (hit, miss, expired, store_error).",
	}, []string{"backend", "outcome"})

	urlCacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpdgate_url_cache_writes_total",
		Help: "Playback URL cache writes by backend and outcome.",
	}, []string{"backend", "outcome"})

	urlCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpdgate_url_cache_invalidations_total",
		Help: "Number of times the whole playback URL cache was cleared.",
	})
)

// RecordCacheLookup counts a lookup outcome.
func RecordCacheLookup(backend, outcome string) {
	urlCacheLookups.WithLabelValues(backend, outcome).Inc()
}

// RecordCacheWrite counts a write, labelled ok or error.
func RecordCacheWrite(backend string, err error) {
	urlCacheWrites.WithLabelValues(backend, outcomeOf(err)).Inc()
}

func IncCacheInvalidation() { urlCacheInvalidations.Inc() }

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
