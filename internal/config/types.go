// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	ListenAddr     string        `yaml:"listenAddr"`
	DataDir        string        `yaml:"dataDir"`
	LogLevel       string        `yaml:"logLevel"`
	Passthrough    bool          `yaml:"passthrough"`
	ResolveTimeout time.Duration `yaml:"resolveTimeout"`

	Upstream  UpstreamConfig  `yaml:"upstream"`
	Pointer   PointerConfig   `yaml:"pointer"`
	Redirect  RedirectConfig  `yaml:"redirect"`
	Cache     CacheConfig     `yaml:"cache"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// UpstreamConfig covers the content-detail API and the CDN.
type UpstreamConfig struct {
	ContentBaseURL  string        `yaml:"contentBaseUrl"`
	UserAgent       string        `yaml:"userAgent"`
	Referer         string        `yaml:"referer"`
	Origin          string        `yaml:"origin"`
	Timeout         time.Duration `yaml:"timeout"`
	Rate            float64       `yaml:"rate"`
	Burst           int           `yaml:"burst"`
	BreakerFailures int           `yaml:"breakerFailures"`
	BreakerReset    time.Duration `yaml:"breakerReset"`
}

// PointerConfig holds the pointer codec secret.
type PointerConfig struct {
	Secret string `yaml:"secret"`
}

// RedirectConfig controls the redirect probe.
type RedirectConfig struct {
	Markers []string      `yaml:"markers"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig selects the URL cache backend.
type CacheConfig struct {
	Backend string       `yaml:"backend"`
	Redis   RedisConfig  `yaml:"redis"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig is used by the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// SQLiteConfig is used by the sqlite backend.
type SQLiteConfig struct {
	BusyTimeout  time.Duration `yaml:"busyTimeout"`
	MaxOpenConns int           `yaml:"maxOpenConns"`
}

// AdminConfig protects the admin endpoints. An empty token disables them.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// TelemetryConfig configures OTLP tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// RateLimitConfig limits inbound API requests per client IP.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}
