// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package contentdetail looks up the obfuscated playback pointer of a
// content id from the service's content-detail API.
package contentdetail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/metrics"
	"github.com/ManuGH/mpdgate/internal/resilience"
	"github.com/ManuGH/mpdgate/internal/session"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound means the content has no DASH playback pointer.
	ErrNotFound = errors.New("content detail: playback pointer not found")
	// ErrUpstreamUnavailable covers transport errors, 5xx, malformed bodies
	// and an open breaker.
	ErrUpstreamUnavailable = errors.New("content detail: upstream unavailable")
	// ErrUnauthorized means the API rejected the credentials.
	ErrUnauthorized = errors.New("content detail: unauthorized")
)

// DefaultBaseURL is the production content-detail host.
const DefaultBaseURL = "https://tb.tapi.videoready.tv"

const detailPath = "/content-detail/api/partner/cdn/player/details/chotiluli/"

const (
	defaultRateLimit      = 5
	defaultRateLimitBurst = 10
	defaultBreakerFails   = 5
	defaultBreakerReset   = 30 * time.Second
	maxBodyBytes          = 1 << 20
)

// UpstreamError carries the HTTP status of a failed lookup.
type UpstreamError struct {
	Status int
	Body   string
	kind   error
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("content detail: status %d", e.Status)
	}
	return fmt.Sprintf("content detail: status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.kind }

// Options configures the client.
type Options struct {
	BaseURL        string
	RateLimit      rate.Limit
	RateLimitBurst int
	BreakerFails   int
	BreakerReset   time.Duration
}

// Client queries the content-detail API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewClient builds a client. httpClient should come from httpx.NewClient.
func NewClient(httpClient *http.Client, opts Options) *Client {
	opts = normalizeOptions(opts)
	return &Client{
		baseURL: opts.BaseURL,
		http:    httpClient,
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		breaker: resilience.NewCircuitBreaker("content_detail", opts.BreakerFails, opts.BreakerReset,
			resilience.WithFailureFilter(countsAgainstUpstream)),
	}
}

func normalizeOptions(opts Options) Options {
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.BreakerFails <= 0 {
		opts.BreakerFails = defaultBreakerFails
	}
	if opts.BreakerReset <= 0 {
		opts.BreakerReset = defaultBreakerReset
	}
	return opts
}

// Only upstream health problems trip the breaker.
func countsAgainstUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

type detailResponse struct {
	Data struct {
		DashPlayreadyPlayURL string `json:"dashPlayreadyPlayUrl"`
	} `json:"data"`
}

// Pointer returns the obfuscated DASH playback pointer for contentID.
func (c *Client) Pointer(ctx context.Context, contentID string, creds session.Credentials) (string, error) {
	logger := xglog.WithComponentFromContext(ctx, "contentdetail")

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.IncUpstreamThrottled("content_detail")
		return "", fmt.Errorf("%w: rate limited: %w", ErrUpstreamUnavailable, err)
	}

	var pointer string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		pointer, err = c.fetch(ctx, contentID, creds)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if err != nil {
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "content_detail.failed").
			Msg("content detail lookup failed")
		return "", err
	}
	return pointer, nil
}

// BreakerState reports the state of the upstream circuit breaker.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) fetch(ctx context.Context, contentID string, creds session.Credentials) (string, error) {
	endpoint := c.baseURL + detailPath + url.PathEscape(contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	req.Header.Set("subscriberId", creds.SubscriberID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstream("content_detail", 0, time.Since(start))
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordUpstream("content_detail", resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &UpstreamError{Status: resp.StatusCode, kind: ErrUnauthorized}
	case resp.StatusCode == http.StatusNotFound:
		return "", &UpstreamError{Status: resp.StatusCode, kind: ErrNotFound}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &UpstreamError{Status: resp.StatusCode, Body: snippet(body), kind: ErrUpstreamUnavailable}
	}

	var detail detailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return "", fmt.Errorf("%w: decode body: %w", ErrUpstreamUnavailable, err)
	}
	pointer := strings.TrimSpace(detail.Data.DashPlayreadyPlayURL)
	if pointer == "" {
		return "", ErrNotFound
	}
	return pointer, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
