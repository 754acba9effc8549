// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"net/http"
	"time"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/rs/zerolog"
)

// ServerConfig holds the HTTP server tunables.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns conservative timeouts for addr. WriteTimeout
// leaves room for a full resolution, which includes two CDN downloads.
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Deps are the daemon manager's collaborators.
type Deps struct {
	// Logger defaults to the "manager" component logger.
	Logger  *zerolog.Logger
	Handler http.Handler
}

// Validate checks that required dependencies are present.
func (d *Deps) Validate() error {
	if d.Handler == nil {
		return ErrMissingHandler
	}
	if d.Logger == nil {
		l := xglog.WithComponent("manager")
		d.Logger = &l
	}
	return nil
}
