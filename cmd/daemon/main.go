// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command daemon runs the mpdgate HTTP service and a few offline helpers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/mpdgate/internal/config"
	"github.com/ManuGH/mpdgate/internal/health"
	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/metrics"
	"github.com/ManuGH/mpdgate/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "decode":
			os.Exit(runDecodeCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "encode":
			os.Exit(runEncodeCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "extract":
			os.Exit(runExtractCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	xglog.Configure(xglog.Config{Service: "mpdgate", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	cfg, err := config.NewLoader(*configPath, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("path", *configPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Version: version.Version})
	metrics.SetBuildInfo(version.Version, version.Commit)
	logger = xglog.WithComponent("daemon")
	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Interface("config", cfg.Redacted()).
		Msg("starting mpdgate")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed")
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.wiring_failed").
			Msg("failed to initialise components")
	}

	if err := app.manager.Start(ctx); err != nil {
		logger.Error().
			Err(err).
			Str("event", "daemon.stopped_with_error").
			Msg("daemon stopped with error")
		os.Exit(1)
	}
	logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
}
