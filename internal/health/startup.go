// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/mpdgate/internal/config"
	"github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/pointer"
	"github.com/ManuGH/mpdgate/internal/urlcache"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	warnRuntimeChoices(logger, cfg)

	logger.Info().Str("event", "startup.checks_passed").Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str("path", path).Msg("data directory is writable")
	return nil
}

func warnRuntimeChoices(logger zerolog.Logger, cfg config.AppConfig) {
	if cfg.Cache.Backend == urlcache.BackendMemory {
		logger.Warn().
			Str("cache_backend", cfg.Cache.Backend).
			Msg("url cache is in memory; resolved urls are lost on restart")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; login and cache may be lost on reboot")
	}

	if cfg.Pointer.Secret != pointer.DefaultSecret {
		logger.Warn().Msg("pointer secret differs from the upstream default; decoding will fail unless upstream changed it too")
	}

	if cfg.Admin.Token == "" {
		logger.Info().Msg("admin token not set; admin endpoints are disabled")
	}
}
