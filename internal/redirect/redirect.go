// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package redirect discovers the CDN URL an origin playback URL points to by
// probing it once with redirects disabled.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/metrics"
	platformnet "github.com/ManuGH/mpdgate/internal/platform/net"
)

// ErrUnresolved marks a probe that yielded no usable redirect target.
var ErrUnresolved = errors.New("redirect unresolved")

// DefaultMarkers selects the origin URLs that sit behind a redirect.
var DefaultMarkers = []string{"bpaita"}

// Result is the outcome of a probe. URL is always usable: it is the
// discovered target when Redirected is true and the input otherwise.
type Result struct {
	URL        string
	Redirected bool
	Err        error
}

// Resolver probes origin URLs. Client must not follow redirects; build it
// with httpx.WithoutRedirects.
type Resolver struct {
	Client    *http.Client
	UserAgent string
	Markers   []string
}

// Applies reports whether rawURL needs a probe at all.
func (r *Resolver) Applies(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	markers := r.Markers
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return platformnet.ContainsMarker(u, markers)
}

// Resolve issues a single HEAD request against originURL. Only a 301 or 302
// carrying a Location is accepted; the target is cut at its first '&'. Any
// other outcome returns originURL with Err set.
func (r *Resolver) Resolve(ctx context.Context, originURL string) Result {
	logger := xglog.WithComponentFromContext(ctx, "redirect")
	fail := func(reason string, cause error) Result {
		cause = xglog.RedactError(cause)
		err := fmt.Errorf("%w: %s", ErrUnresolved, reason)
		if cause != nil {
			err = fmt.Errorf("%w: %s: %w", ErrUnresolved, reason, cause)
		}
		logger.Warn().Err(cause).
			Str(xglog.FieldEvent, "redirect.unresolved").
			Str(xglog.FieldURL, xglog.RedactURL(originURL)).
			Str("reason", reason).
			Msg("redirect probe failed, using origin url")
		return Result{URL: originURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, originURL, nil)
	if err != nil {
		return fail("build request", err)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	start := time.Now()
	resp, err := r.Client.Do(req)
	if err != nil {
		metrics.RecordUpstream("redirect", 0, time.Since(start))
		return fail("request failed", err)
	}
	_ = resp.Body.Close()
	metrics.RecordUpstream("redirect", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusMovedPermanently && resp.StatusCode != http.StatusFound {
		return fail(fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return fail("missing location", nil)
	}
	target := Truncate(location)
	if _, ok := platformnet.ParseDirectHTTPURL(target); !ok {
		return fail("location is not an absolute http url", nil)
	}

	logger.Debug().
		Str(xglog.FieldEvent, "redirect.resolved").
		Int(xglog.FieldStatus, resp.StatusCode).
		Str(xglog.FieldURL, xglog.RedactURL(target)).
		Msg("redirect target discovered")
	return Result{URL: target, Redirected: true}
}

// Truncate cuts location at its first '&'. The CDN token is the first query
// parameter; everything after it is tracking noise.
func Truncate(location string) string {
	if i := strings.IndexByte(location, '&'); i >= 0 {
		return location[:i]
	}
	return location
}
