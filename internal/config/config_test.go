// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/mpdgate/internal/validate"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func withDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MPDGATE_DATA_DIR", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := withDataDir(t)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Default()
	want.DataDir = dir
	want.Version = "v1.2.3"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	withDataDir(t)
	path := writeConfig(t, `
listenAddr: "127.0.0.1:8080"
passthrough: true
upstream:
  timeout: 3s
  rate: 2.5
redirect:
  markers: [bpaita, edge-redirect]
cache:
  backend: sqlite
  sqlite:
    maxOpenConns: 2
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.True(t, cfg.Passthrough)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 2.5, cfg.Upstream.Rate)
	assert.Equal(t, []string{"bpaita", "edge-redirect"}, cfg.Redirect.Markers)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 2, cfg.Cache.SQLite.MaxOpenConns)

	// untouched keys keep their defaults
	assert.Equal(t, Default().Upstream.UserAgent, cfg.Upstream.UserAgent)
	assert.Equal(t, Default().Cache.SQLite.BusyTimeout, cfg.Cache.SQLite.BusyTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	withDataDir(t)
	path := writeConfig(t, "listenAddr: \":9000\"\ncache:\n  backend: badger\n")
	t.Setenv("MPDGATE_LISTEN_ADDR", ":9100")
	t.Setenv("MPDGATE_CACHE_BACKEND", "memory")
	t.Setenv("MPDGATE_REDIRECT_MARKERS", " a , ,b ")
	t.Setenv("MPDGATE_PASSTHROUGH", "yes")
	t.Setenv("MPDGATE_ADMIN_TOKEN", "s3cret")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, []string{"a", "b"}, cfg.Redirect.Markers)
	assert.True(t, cfg.Passthrough)
	assert.Equal(t, "s3cret", cfg.Admin.Token)
}

func TestLoad_StrictFile(t *testing.T) {
	withDataDir(t)

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "listenAddr: \":1\"\nlisten_port: 5\n")
		_, err := NewLoader(path, "").Load()
		assert.ErrorIs(t, err, ErrUnknownConfigField)
	})

	t.Run("multiple documents", func(t *testing.T) {
		path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")
		_, err := NewLoader(path, "").Load()
		assert.ErrorContains(t, err, "multiple documents")
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeConfig(t, "")
		_, err := NewLoader(path, "").Load()
		assert.NoError(t, err)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
		_, err := NewLoader(path, "").Load()
		assert.ErrorContains(t, err, "only YAML supported")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "").Load()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoad_ValidationFailure(t *testing.T) {
	withDataDir(t)
	t.Setenv("MPDGATE_CACHE_BACKEND", "s3")
	t.Setenv("MPDGATE_LISTEN_ADDR", "nope")

	_, err := NewLoader("", "").Load()
	require.Error(t, err)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	var fields []string
	for _, e := range verr.Errors() {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"ListenAddr", "Cache.Backend"}, fields)
}

func TestValidate(t *testing.T) {
	base := Default()
	base.DataDir = t.TempDir()
	require.NoError(t, Validate(base))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"bad log level", func(c *AppConfig) { c.LogLevel = "loud" }, "LogLevel"},
		{"content url scheme", func(c *AppConfig) { c.Upstream.ContentBaseURL = "ftp://x" }, "Upstream.ContentBaseURL"},
		{"no markers", func(c *AppConfig) { c.Redirect.Markers = nil }, "Redirect.Markers"},
		{"blank marker", func(c *AppConfig) { c.Redirect.Markers = []string{" "} }, "Redirect.Markers"},
		{"empty secret", func(c *AppConfig) { c.Pointer.Secret = "" }, "Pointer.Secret"},
		{"zero rate", func(c *AppConfig) { c.Upstream.Rate = 0 }, "Upstream.Rate"},
		{"redis without addr", func(c *AppConfig) {
			c.Cache.Backend = "redis"
			c.Cache.Redis.Addr = ""
		}, "Cache.Redis.Addr"},
		{"telemetry exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "Telemetry.Exporter"},
		{"sampling rate", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = 2
		}, "Telemetry.SamplingRate"},
		{"rate limit window", func(c *AppConfig) { c.RateLimit.Window = 0 }, "RateLimit.Window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Redirect.Markers = append([]string(nil), base.Redirect.Markers...)
			tt.mutate(&cfg)

			var verr validate.ValidationError
			require.ErrorAs(t, Validate(cfg), &verr)
			require.Len(t, verr.Errors(), 1)
			assert.Equal(t, tt.field, verr.Errors()[0].Field)
		})
	}
}

func TestUnknownEnvKeys(t *testing.T) {
	withDataDir(t)
	l := NewLoader("", "")
	_, err := l.Load()
	require.NoError(t, err)

	unknown := l.UnknownEnvKeys([]string{
		"MPDGATE_LISTEN_ADDR=:1",
		"MPDGATE_LISTEN_PORT=1",
		"MPDGATE_CACHE=file",
		"HOME=/root",
	})
	assert.Equal(t, []string{"MPDGATE_CACHE", "MPDGATE_LISTEN_PORT"}, unknown)
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Admin.Token = "admin"
	cfg.Cache.Redis.Password = ""

	r := cfg.Redacted()
	assert.Equal(t, "***", r.Pointer.Secret)
	assert.Equal(t, "***", r.Admin.Token)
	assert.Empty(t, r.Cache.Redis.Password)
	assert.Equal(t, "admin", cfg.Admin.Token, "original untouched")
}
