// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/mpdgate/internal/contentdetail"
	"github.com/ManuGH/mpdgate/internal/manifest"
	"github.com/ManuGH/mpdgate/internal/pointer"
	"github.com/ManuGH/mpdgate/internal/redirect"
	"github.com/ManuGH/mpdgate/internal/urlcache"
)

// Default returns the built-in configuration.
func Default() AppConfig {
	sqlite := urlcache.DefaultSQLiteConfig()
	return AppConfig{
		ListenAddr:     ":3001",
		DataDir:        "data",
		LogLevel:       "info",
		Passthrough:    false,
		ResolveTimeout: 30 * time.Second,
		Upstream: UpstreamConfig{
			ContentBaseURL:  contentdetail.DefaultBaseURL,
			UserAgent:       manifest.DefaultHeaders.UserAgent,
			Referer:         manifest.DefaultHeaders.Referer,
			Origin:          manifest.DefaultHeaders.Origin,
			Timeout:         10 * time.Second,
			Rate:            5,
			Burst:           10,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Pointer: PointerConfig{Secret: pointer.DefaultSecret},
		Redirect: RedirectConfig{
			Markers: append([]string(nil), redirect.DefaultMarkers...),
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend: urlcache.BackendFile,
			Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "mpdgate:url:"},
			SQLite: SQLiteConfig{
				BusyTimeout:  sqlite.BusyTimeout,
				MaxOpenConns: sqlite.MaxOpenConns,
			},
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 120,
			Window:   time.Minute,
		},
	}
}
