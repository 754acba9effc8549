// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) key(name string) string {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	l.warnUnknownEnv(os.Environ())

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing. Keys absent
// from the file keep their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString(l.key("LISTEN_ADDR"), cfg.ListenAddr)
	cfg.DataDir = ParseString(l.key("DATA_DIR"), cfg.DataDir)
	cfg.LogLevel = ParseString(l.key("LOG_LEVEL"), cfg.LogLevel)
	cfg.Passthrough = ParseBool(l.key("PASSTHROUGH"), cfg.Passthrough)
	cfg.ResolveTimeout = ParseDuration(l.key("RESOLVE_TIMEOUT"), cfg.ResolveTimeout)

	up := &cfg.Upstream
	up.ContentBaseURL = ParseString(l.key("CONTENT_API_URL"), up.ContentBaseURL)
	up.UserAgent = ParseString(l.key("USER_AGENT"), up.UserAgent)
	up.Referer = ParseString(l.key("REFERER"), up.Referer)
	up.Origin = ParseString(l.key("ORIGIN"), up.Origin)
	up.Timeout = ParseDuration(l.key("UPSTREAM_TIMEOUT"), up.Timeout)
	up.Rate = ParseFloat(l.key("UPSTREAM_RATE"), up.Rate)
	up.Burst = ParseInt(l.key("UPSTREAM_BURST"), up.Burst)
	up.BreakerFailures = ParseInt(l.key("BREAKER_FAILURES"), up.BreakerFailures)
	up.BreakerReset = ParseDuration(l.key("BREAKER_RESET"), up.BreakerReset)

	cfg.Pointer.Secret = ParseString(l.key("POINTER_SECRET"), cfg.Pointer.Secret)
	cfg.Redirect.Markers = ParseList(l.key("REDIRECT_MARKERS"), cfg.Redirect.Markers)
	cfg.Redirect.Timeout = ParseDuration(l.key("REDIRECT_TIMEOUT"), cfg.Redirect.Timeout)

	cfg.Cache.Backend = ParseString(l.key("CACHE_BACKEND"), cfg.Cache.Backend)
	cfg.Cache.Redis.Addr = ParseString(l.key("REDIS_ADDR"), cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = ParseString(l.key("REDIS_PASSWORD"), cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = ParseInt(l.key("REDIS_DB"), cfg.Cache.Redis.DB)
	cfg.Cache.Redis.KeyPrefix = ParseString(l.key("REDIS_KEY_PREFIX"), cfg.Cache.Redis.KeyPrefix)
	cfg.Cache.SQLite.BusyTimeout = ParseDuration(l.key("SQLITE_BUSY_TIMEOUT"), cfg.Cache.SQLite.BusyTimeout)
	cfg.Cache.SQLite.MaxOpenConns = ParseInt(l.key("SQLITE_MAX_OPEN_CONNS"), cfg.Cache.SQLite.MaxOpenConns)

	cfg.Admin.Token = ParseString(l.key("ADMIN_TOKEN"), cfg.Admin.Token)

	cfg.Telemetry.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(l.key("OTLP_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(l.key("OTLP_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = ParseString(l.key("ENVIRONMENT"), cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = ParseFloat(l.key("TRACE_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)

	cfg.RateLimit.Enabled = ParseBool(l.key("RATELIMIT_ENABLED"), cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = ParseInt(l.key("RATELIMIT_REQUESTS"), cfg.RateLimit.Requests)
	cfg.RateLimit.Window = ParseDuration(l.key("RATELIMIT_WINDOW"), cfg.RateLimit.Window)
}

// UnknownEnvKeys returns the MPDGATE_* entries of environ the loader did
// not consume, sorted.
func (l *Loader) UnknownEnvKeys(environ []string) []string {
	var unknown []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (l *Loader) warnUnknownEnv(environ []string) {
	keys := l.UnknownEnvKeys(environ)
	if len(keys) == 0 {
		return
	}
	logger := xglog.WithComponent("config")
	logger.Warn().
		Str("event", "config.env.unknown").
		Strs("keys", keys).
		Msg("ignoring unknown environment variables")
}
