// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ManuGH/mpdgate/internal/api"
	"github.com/ManuGH/mpdgate/internal/api/middleware"
	"github.com/ManuGH/mpdgate/internal/config"
	"github.com/ManuGH/mpdgate/internal/contentdetail"
	"github.com/ManuGH/mpdgate/internal/daemon"
	"github.com/ManuGH/mpdgate/internal/health"
	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/manifest"
	"github.com/ManuGH/mpdgate/internal/metrics"
	"github.com/ManuGH/mpdgate/internal/platform/httpx"
	"github.com/ManuGH/mpdgate/internal/pointer"
	"github.com/ManuGH/mpdgate/internal/redirect"
	"github.com/ManuGH/mpdgate/internal/resolver"
	"github.com/ManuGH/mpdgate/internal/session"
	"github.com/ManuGH/mpdgate/internal/telemetry"
	"github.com/ManuGH/mpdgate/internal/urlcache"
	"github.com/ManuGH/mpdgate/internal/version"
	"golang.org/x/time/rate"
)

const serviceName = "mpdgate"

type app struct {
	manager  daemon.Manager
	handler  http.Handler
	cache    *urlcache.Cache
	sessions *session.FileProvider
}

// buildApp wires every component from cfg. Resources opened before a
// failure are released before returning.
func buildApp(ctx context.Context, cfg config.AppConfig) (_ *app, err error) {
	logger := xglog.WithComponent("wiring")
	var closers []daemon.ShutdownHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	closers = append(closers, tp.Shutdown)

	cache, err := urlcache.Open(ctx, urlcache.Options{
		Backend: cfg.Cache.Backend,
		DataDir: cfg.DataDir,
		Redis: urlcache.RedisConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		},
		SQLite: urlcache.SQLiteConfig{
			BusyTimeout:  cfg.Cache.SQLite.BusyTimeout,
			MaxOpenConns: cfg.Cache.SQLite.MaxOpenConns,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("url cache: %w", err)
	}
	closers = append(closers, func(context.Context) error { return cache.Close() })

	sessions := session.NewFileProvider(cfg.DataDir)
	sessions.OnTeardown(func(ctx context.Context) {
		err := cache.Invalidate(ctx)
		metrics.RecordSessionTeardown(err)
		if err != nil {
			l := xglog.WithComponentFromContext(ctx, "wiring")
			l.Error().Err(err).Str(xglog.FieldEvent, "cache.invalidate_failed").Msg("failed to clear url cache on logout")
		}
	})
	if err := sessions.Start(ctx); err != nil {
		return nil, fmt.Errorf("session watcher: %w", err)
	}
	closers = append(closers, func(context.Context) error { return sessions.Close() })

	headers := manifest.Headers{
		UserAgent: cfg.Upstream.UserAgent,
		Referer:   cfg.Upstream.Referer,
		Origin:    cfg.Upstream.Origin,
	}
	detail := contentdetail.NewClient(
		httpx.NewClient(cfg.Upstream.Timeout, httpx.WithTracing("content_detail")),
		contentdetail.Options{
			BaseURL:        cfg.Upstream.ContentBaseURL,
			RateLimit:      rate.Limit(cfg.Upstream.Rate),
			RateLimitBurst: cfg.Upstream.Burst,
			BreakerFails:   cfg.Upstream.BreakerFailures,
			BreakerReset:   cfg.Upstream.BreakerReset,
		},
	)

	svc := resolver.New(resolver.Deps{
		Cache: cache,
		Codec: pointer.NewCodec(cfg.Pointer.Secret),
		Redirect: &redirect.Resolver{
			Client:    httpx.NewClient(cfg.Redirect.Timeout, httpx.WithoutRedirects(), httpx.WithTracing("redirect")),
			UserAgent: cfg.Upstream.UserAgent,
			Markers:   cfg.Redirect.Markers,
		},
		Fetcher: &manifest.Fetcher{
			Client:  httpx.NewClient(cfg.Upstream.Timeout, httpx.WithTracing("cdn")),
			Headers: headers,
		},
		Source:      detail,
		Passthrough: cfg.Passthrough,
		Timeout:     cfg.ResolveTimeout,
	})

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewStoreChecker(cache, cache.Backend()))
	hm.RegisterChecker(health.NewSessionChecker(sessions))
	hm.RegisterChecker(health.NewBreakerChecker("content_detail", detail.BreakerState))

	server := api.New(api.Deps{
		Resolver:   svc,
		Sessions:   sessions,
		Cache:      cache,
		Health:     hm,
		AdminToken: cfg.Admin.Token,
		Stack:      stackConfig(cfg),
	})
	handler := server.Handler()

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.ListenAddr), daemon.Deps{Handler: handler})
	if err != nil {
		return nil, err
	}
	// Hooks run in reverse: sessions stop first, telemetry flushes last.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("url_cache", func(context.Context) error { return cache.Close() })
	mgr.RegisterShutdownHook("session", func(context.Context) error { return sessions.Close() })

	logger.Info().
		Str(xglog.FieldEvent, "wiring.complete").
		Str("cache_backend", cache.Backend()).
		Bool("telemetry", cfg.Telemetry.Enabled).
		Bool("passthrough", cfg.Passthrough).
		Msg("components initialised")

	return &app{manager: mgr, handler: handler, cache: cache, sessions: sessions}, nil
}

func stackConfig(cfg config.AppConfig) middleware.StackConfig {
	sc := middleware.StackConfig{
		EnableCORS:            true,
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		EnableLogging:         true,
		EnableRateLimit:       cfg.RateLimit.Enabled,
		RateLimit:             cfg.RateLimit.Requests,
		RateLimitWindow:       cfg.RateLimit.Window,
	}
	if cfg.Telemetry.Enabled {
		sc.TracingService = serviceName
	}
	return sc
}
