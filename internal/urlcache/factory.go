// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package urlcache

import (
	"context"
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	DataDir string
	Redis   RedisConfig
	SQLite  SQLiteConfig
}

// Open builds a Cache for the configured backend. File based backends live
// under DataDir.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendFile
	}

	var (
		store Store
		err   error
	)
	switch backend {
	case BackendFile:
		store, err = NewFileStore(filepath.Join(opts.DataDir, "cache.json"))
	case BackendMemory:
		store = NewMemoryStore()
	case BackendSQLite:
		cfg := opts.SQLite
		if cfg.BusyTimeout == 0 {
			cfg = DefaultSQLiteConfig()
		}
		store, err = OpenSQLiteStore(filepath.Join(opts.DataDir, "cache.db"), cfg)
	case BackendBadger:
		store, err = OpenBadgerStore(filepath.Join(opts.DataDir, "cache.badger"))
	case BackendRedis:
		store, err = NewRedisStore(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", backend, err)
	}
	return New(store, backend), nil
}
