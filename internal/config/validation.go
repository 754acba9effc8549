// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/mpdgate/internal/urlcache"
	"github.com/ManuGH/mpdgate/internal/validate"
	"github.com/rs/zerolog"
)

const (
	time100ms = 100 * time.Millisecond
	time1s    = time.Second
	time5m    = 5 * time.Minute
	time1h    = time.Hour
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("ListenAddr", cfg.ListenAddr)
	v.Directory("DataDir", cfg.DataDir, false)
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		v.AddError("LogLevel", err.Error(), cfg.LogLevel)
	}
	v.Duration("ResolveTimeout", cfg.ResolveTimeout, time1s, time5m)

	v.URL("Upstream.ContentBaseURL", cfg.Upstream.ContentBaseURL, []string{"http", "https"})
	v.NotEmpty("Upstream.UserAgent", cfg.Upstream.UserAgent)
	v.Duration("Upstream.Timeout", cfg.Upstream.Timeout, time100ms, time5m)
	if cfg.Upstream.Rate <= 0 {
		v.AddError("Upstream.Rate", "value must be positive", cfg.Upstream.Rate)
	}
	v.Positive("Upstream.Burst", cfg.Upstream.Burst)
	v.Positive("Upstream.BreakerFailures", cfg.Upstream.BreakerFailures)
	v.Duration("Upstream.BreakerReset", cfg.Upstream.BreakerReset, time1s, time1h)

	v.NotEmpty("Pointer.Secret", cfg.Pointer.Secret)

	if len(cfg.Redirect.Markers) == 0 {
		v.AddError("Redirect.Markers", "at least one marker is required", cfg.Redirect.Markers)
	}
	for _, m := range cfg.Redirect.Markers {
		if strings.TrimSpace(m) == "" {
			v.AddError("Redirect.Markers", "markers cannot be blank", m)
		}
	}
	v.Duration("Redirect.Timeout", cfg.Redirect.Timeout, time100ms, time5m)

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{
		urlcache.BackendFile,
		urlcache.BackendMemory,
		urlcache.BackendSQLite,
		urlcache.BackendBadger,
		urlcache.BackendRedis,
	})
	switch cfg.Cache.Backend {
	case urlcache.BackendRedis:
		v.NotEmpty("Cache.Redis.Addr", cfg.Cache.Redis.Addr)
		v.Range("Cache.Redis.DB", cfg.Cache.Redis.DB, 0, 15)
	case urlcache.BackendSQLite:
		v.Positive("Cache.SQLite.MaxOpenConns", cfg.Cache.SQLite.MaxOpenConns)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate)
	}

	if cfg.RateLimit.Enabled {
		v.Positive("RateLimit.Requests", cfg.RateLimit.Requests)
		v.Duration("RateLimit.Window", cfg.RateLimit.Window, time1s, time1h)
	}

	return v.Err()
}
