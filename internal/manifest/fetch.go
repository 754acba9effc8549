// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manifest downloads DASH manifests and media segments from the CDN
// and rewrites the manifest text for direct playback.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/metrics"
)

// ErrFetch marks a failed manifest or segment download.
var ErrFetch = errors.New("fetch failed")

const (
	maxManifestBytes = 8 << 20
	maxSegmentBytes  = 16 << 20
)

// Headers are sent with every CDN request. The CDN rejects requests that do
// not look like they come from the service's web player.
type Headers struct {
	UserAgent string
	Referer   string
	Origin    string
}

// DefaultHeaders mirrors the web player.
var DefaultHeaders = Headers{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36",
	Referer:   "https://watch.tataplay.com/",
	Origin:    "https://watch.tataplay.com",
}

// StatusError reports a non-2xx CDN response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", xglog.RedactURL(e.URL), e.Status)
}

func (e *StatusError) Unwrap() error { return ErrFetch }

// Fetcher downloads manifests and segments.
type Fetcher struct {
	Client  *http.Client
	Headers Headers
}

// Fetch returns the manifest body.
func (f *Fetcher) Fetch(ctx context.Context, manifestURL string) ([]byte, error) {
	return f.get(ctx, "manifest", manifestURL, maxManifestBytes)
}

// FetchSegment returns a media segment body.
func (f *Fetcher) FetchSegment(ctx context.Context, segmentURL string) ([]byte, error) {
	return f.get(ctx, "segment", segmentURL, maxSegmentBytes)
}

func (f *Fetcher) get(ctx context.Context, target, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %w", ErrFetch, target, xglog.RedactError(err))
	}
	h := f.Headers
	if h == (Headers{}) {
		h = DefaultHeaders
	}
	setIf(req.Header, "User-Agent", h.UserAgent)
	setIf(req.Header, "Referer", h.Referer)
	setIf(req.Header, "Origin", h.Origin)

	start := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		metrics.RecordUpstream(target, 0, time.Since(start))
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, target, xglog.RedactError(err))
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordUpstream(target, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrFetch, target, xglog.RedactError(err))
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, target, limit)
	}
	return body, nil
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
