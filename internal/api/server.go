// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the manifest endpoint and the operator routes.
package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/mpdgate/internal/api/middleware"
	"github.com/ManuGH/mpdgate/internal/auth"
	"github.com/ManuGH/mpdgate/internal/health"
	"github.com/ManuGH/mpdgate/internal/resolver"
	"github.com/ManuGH/mpdgate/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ManifestResolver produces annotated manifests.
type ManifestResolver interface {
	Resolve(ctx context.Context, contentID string, creds session.Credentials) (*resolver.Result, error)
}

// CacheAdmin clears the URL cache, wholesale or for one content id.
type CacheAdmin interface {
	Invalidate(ctx context.Context) error
	Forget(ctx context.Context, contentID string) error
}

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Resolver   ManifestResolver
	Sessions   session.Provider
	Cache      CacheAdmin
	Health     *health.Manager
	AdminToken string
	Stack      middleware.StackConfig
	// Metrics serves /metrics, promhttp.Handler() when nil.
	Metrics http.Handler
}

// Server is the HTTP surface.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	s := &Server{deps: deps}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(s.deps.Stack)

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/content/manifest/", s.handleMissingID)
		r.Get("/content/manifest/{id}", s.handleManifest)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireToken(s.deps.AdminToken))
			r.Delete("/cache", s.handleClearCache)
			r.Delete("/cache/{id}", s.handleForgetCached)
		})
	})
	return r
}
