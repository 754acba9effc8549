// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package urlcache remembers resolved playback URLs per content id and
// serves them back while the CDN token embedded in the URL is still valid.
package urlcache

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/metrics"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("urlcache: store closed")

// Record is one persisted resolution.
type Record struct {
	URL       string `json:"url"`
	UpdatedAt int64  `json:"updated_at"`
}

// Store persists records keyed by content id.
// Get reports found=false without error when no record exists.
type Store interface {
	Get(ctx context.Context, id string) (Record, bool, error)
	Put(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache applies URL-derived validity on top of a Store.
type Cache struct {
	store   Store
	backend string
}

// New wraps store. backend only labels metrics and logs.
func New(store Store, backend string) *Cache {
	if backend == "" {
		backend = "custom"
	}
	return &Cache{store: store, backend: backend}
}

// Backend returns the configured backend name.
func (c *Cache) Backend() string { return c.backend }

// Lookup returns the cached URL for id while its token expiry lies after now.
// Store failures count as misses. Expired records are left in place; the next
// Store overwrites them.
func (c *Cache) Lookup(ctx context.Context, id string, now time.Time) (string, bool) {
	logger := xglog.WithComponentFromContext(ctx, "urlcache")

	rec, found, err := c.store.Get(ctx, id)
	if err != nil {
		metrics.RecordCacheLookup(c.backend, metrics.CacheStoreError)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "cache.lookup_failed").
			Str("backend", c.backend).
			Msg("cache lookup failed, treating as miss")
		return "", false
	}
	if !found || rec.URL == "" {
		metrics.RecordCacheLookup(c.backend, metrics.CacheMiss)
		return "", false
	}

	exp, ok := ExpiryOf(rec.URL)
	if !ok || now.Unix() >= exp {
		metrics.RecordCacheLookup(c.backend, metrics.CacheExpired)
		logger.Debug().
			Str(xglog.FieldEvent, "cache.expired").
			Int64("exp", exp).
			Bool("exp_parsed", ok).
			Msg("cached url no longer valid")
		return "", false
	}

	metrics.RecordCacheLookup(c.backend, metrics.CacheHit)
	return rec.URL, true
}

// Store records rawURL for id, replacing any previous record.
func (c *Cache) Store(ctx context.Context, id, rawURL string, now time.Time) error {
	err := c.store.Put(ctx, id, Record{URL: rawURL, UpdatedAt: now.Unix()})
	metrics.RecordCacheWrite(c.backend, err)
	return err
}

// Forget drops the record for id. Forgetting an unknown id is not an error.
func (c *Cache) Forget(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	logger := xglog.WithComponentFromContext(ctx, "urlcache")
	logger.Info().
		Str(xglog.FieldEvent, "cache.forgotten").
		Str(xglog.FieldContentID, id).
		Str("backend", c.backend).
		Msg("playback url dropped from cache")
	return nil
}

// Invalidate drops every record.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	metrics.IncCacheInvalidation()
	logger := xglog.WithComponentFromContext(ctx, "urlcache")
	logger.Info().
		Str(xglog.FieldEvent, "cache.invalidated").
		Str("backend", c.backend).
		Msg("playback url cache cleared")
	return nil
}

// Ping checks the backing store when it supports health checks.
func (c *Cache) Ping(ctx context.Context) error {
	if p, ok := c.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the backing store.
func (c *Cache) Close() error { return c.store.Close() }

// ExpiryOf extracts the token expiry (unix seconds) carried by a playback URL.
// An hdntl token takes precedence over a top-level exp parameter; its
// attributes are separated by '~'. A repeated key resolves to its last value.
func ExpiryOf(rawURL string) (int64, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	// ParseQuery keeps every well-formed pair even when it reports an error.
	q, _ := url.ParseQuery(u.RawQuery)

	var exp string
	if token := q["hdntl"]; len(token) > 0 {
		exp = tokenAttr(token[len(token)-1], "exp")
	} else if vals := q["exp"]; len(vals) > 0 {
		exp = vals[len(vals)-1]
	}
	if exp == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func tokenAttr(token, name string) string {
	var val string
	for _, part := range strings.Split(token, "~") {
		k, v, _ := strings.Cut(part, "=")
		if k == name {
			val = v
		}
	}
	return val
}
