// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resolver turns a content id into an annotated DASH manifest:
// cached URL or content-detail pointer, pointer decode, redirect discovery,
// manifest download and DRM init data injection.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/manifest"
	"github.com/ManuGH/mpdgate/internal/metrics"
	"github.com/ManuGH/mpdgate/internal/mpd"
	platformnet "github.com/ManuGH/mpdgate/internal/platform/net"
	"github.com/ManuGH/mpdgate/internal/pointer"
	"github.com/ManuGH/mpdgate/internal/pssh"
	"github.com/ManuGH/mpdgate/internal/redirect"
	"github.com/ManuGH/mpdgate/internal/session"
	"github.com/ManuGH/mpdgate/internal/telemetry"
	"github.com/ManuGH/mpdgate/internal/urlcache"
)

const defaultTimeout = 30 * time.Second

// ContentSource returns the obfuscated playback pointer of a content id.
type ContentSource interface {
	Pointer(ctx context.Context, contentID string, creds session.Credentials) (string, error)
}

// Result is a finished resolution. Shared between concurrent callers of the
// same content id; treat it as read-only.
type Result struct {
	ContentID   string
	ManifestURL string
	Manifest    []byte
	FromCache   bool
	Redirected  bool
	// Passthrough results carry only ManifestURL: the decoded URL needs no
	// rewriting and the caller should send the client there.
	Passthrough bool
	DRM         *pssh.DrmInitData
	Degraded    []Stage
}

// Deps are the collaborators of a Service.
type Deps struct {
	Cache    *urlcache.Cache
	Codec    *pointer.Codec
	Redirect *redirect.Resolver
	Fetcher  *manifest.Fetcher
	Source   ContentSource

	// Now defaults to time.Now.
	Now func() time.Time
	// Passthrough answers URLs that need no redirect probe with a
	// Passthrough result instead of fetching them.
	Passthrough bool
	// Timeout bounds one resolution, default 30s.
	Timeout time.Duration
}

// Service resolves content ids. Safe for concurrent use.
type Service struct {
	deps   Deps
	group  singleflight.Group
	tracer trace.Tracer
}

// New builds a Service.
func New(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Timeout <= 0 {
		deps.Timeout = defaultTimeout
	}
	return &Service{deps: deps, tracer: telemetry.Tracer("mpdgate/resolver")}
}

// Resolve produces the manifest for contentID. Concurrent calls for the same
// id share one resolution, run under the credentials of the first caller.
// Each caller still stops waiting when its own ctx ends.
func (s *Service) Resolve(ctx context.Context, contentID string, creds session.Credentials) (*Result, error) {
	ctx = xglog.ContextWithContentID(ctx, contentID)
	// The shared run must outlive an impatient first caller.
	runCtx := context.WithoutCancel(ctx)

	ch := s.group.DoChan(contentID, func() (any, error) {
		runCtx, cancel := context.WithTimeout(runCtx, s.deps.Timeout)
		defer cancel()
		return s.resolve(runCtx, contentID, creds)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.IncResolutionShared()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (s *Service) resolve(ctx context.Context, contentID string, creds session.Credentials) (result *Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(attribute.String(telemetry.ContentIDKey, contentID)))
	logger := xglog.WithComponentFromContext(ctx, "resolver")
	defer func() {
		outcome := metrics.OutcomeOK
		switch {
		case err != nil:
			outcome = metrics.OutcomeAborted
			telemetry.RecordError(span, err, "resolution", true)
		case result.Passthrough:
			outcome = "passthrough"
		}
		metrics.ObserveResolution(outcome, time.Since(start))
		if result != nil {
			span.SetAttributes(telemetry.ResolutionAttributes(contentID, result.FromCache, result.Redirected, result.DRM != nil)...)
		}
		span.End()
	}()

	res := &Result{ContentID: contentID}
	r := &run{tracer: s.tracer, res: res}

	manifestURL, hit := s.deps.Cache.Lookup(ctx, contentID, s.deps.Now())
	r.mark(ctx, StageCacheLookup, hitOutcome(hit))
	res.FromCache = hit

	if !hit {
		manifestURL, err = s.discover(ctx, r, contentID, creds)
		if err != nil {
			return nil, err
		}
		if res.Passthrough {
			res.ManifestURL = manifestURL
			logger.Info().
				Str(xglog.FieldEvent, "resolve.passthrough").
				Str(xglog.FieldURL, xglog.RedactURL(manifestURL)).
				Msg("decoded url needs no rewriting")
			return res, nil
		}
	}
	res.ManifestURL = manifestURL

	var body []byte
	if _, err := r.do(ctx, StageManifestFetch, func(ctx context.Context) error {
		var err error
		body, err = s.deps.Fetcher.Fetch(ctx, manifestURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrManifestFetch, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	baseURL := mpd.BaseURL(manifestURL)
	res.DRM = s.drm(ctx, r, body, baseURL)

	text := manifest.RewritePaths(string(body), baseURL)
	if res.DRM != nil {
		text = manifest.Annotate(text, *res.DRM)
	}
	res.Manifest = []byte(text)

	logger.Info().
		Str(xglog.FieldEvent, "resolve.done").
		Bool(xglog.FieldCacheHit, res.FromCache).
		Bool(xglog.FieldRedirected, res.Redirected).
		Bool("drm", res.DRM != nil).
		Strs("degraded", stageNames(res.Degraded)).
		Dur("elapsed", time.Since(start)).
		Msg("manifest resolved")
	return res, nil
}

// discover runs the cache-miss path and returns the URL to fetch.
func (s *Service) discover(ctx context.Context, r *run, contentID string, creds session.Credentials) (string, error) {
	var ptr string
	if _, err := r.do(ctx, StageContentDetail, func(ctx context.Context) error {
		var err error
		ptr, err = s.deps.Source.Pointer(ctx, contentID, creds)
		return err
	}); err != nil {
		return "", err
	}

	var decoded string
	if _, err := r.do(ctx, StageDecode, func(context.Context) error {
		var err error
		decoded, err = s.deps.Codec.Decode(ptr)
		if err != nil {
			return err
		}
		if _, ok := platformnet.ParseDirectHTTPURL(decoded); !ok {
			return fmt.Errorf("%w: decoded value is not an http url", pointer.ErrDecode)
		}
		return nil
	}); err != nil {
		return "", err
	}

	if !s.deps.Redirect.Applies(decoded) {
		r.mark(ctx, StageRedirect, metrics.OutcomeSkipped)
		if s.deps.Passthrough {
			r.mark(ctx, StageCacheStore, metrics.OutcomeSkipped)
			r.res.Passthrough = true
			return decoded, nil
		}
		r.store(ctx, s, contentID, decoded)
		return decoded, nil
	}

	target := decoded
	failed, _ := r.do(ctx, StageRedirect, func(ctx context.Context) error {
		probe := s.deps.Redirect.Resolve(ctx, decoded)
		target = probe.URL
		r.res.Redirected = probe.Redirected
		return probe.Err
	})
	if failed {
		// The origin URL only works through a fresh redirect; keep it out of the cache.
		r.mark(ctx, StageCacheStore, metrics.OutcomeSkipped)
		return target, nil
	}
	r.store(ctx, s, contentID, target)
	return target, nil
}

// drm extracts the protection boxes from the audio init segment. Every
// failure here degrades to an unannotated manifest.
func (s *Service) drm(ctx context.Context, r *run, body []byte, baseURL string) *pssh.DrmInitData {
	var candidates []string
	if failed, _ := r.do(ctx, StageSegmentLocate, func(context.Context) error {
		doc, err := mpd.Parse(body)
		if err != nil {
			return err
		}
		candidates, err = mpd.LocateAudioInitSegments(doc, baseURL)
		return err
	}); failed {
		return nil
	}

	var segment []byte
	if failed, _ := r.do(ctx, StageSegmentFetch, func(ctx context.Context) error {
		var err error
		segment, err = s.fetchFirstSegment(ctx, candidates)
		return err
	}); failed {
		return nil
	}

	var drm pssh.DrmInitData
	if failed, _ := r.do(ctx, StageExtract, func(context.Context) error {
		var err error
		drm, err = pssh.Extract(segment)
		return err
	}); failed {
		return nil
	}
	return &drm
}

// fetchFirstSegment downloads the first candidate the CDN serves. A
// representation the CDN has not published yet must not hide the others.
func (s *Service) fetchFirstSegment(ctx context.Context, candidates []string) ([]byte, error) {
	logger := xglog.WithComponentFromContext(ctx, "resolver")
	var errs []error
	for i, u := range candidates {
		segment, err := s.deps.Fetcher.FetchSegment(ctx, u)
		if err == nil {
			return segment, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i < len(candidates)-1 {
			logger.Debug().Err(err).
				Str(xglog.FieldEvent, "resolve.segment_fallback").
				Str(xglog.FieldURL, xglog.RedactURL(u)).
				Msg("audio segment unavailable, trying next representation")
		}
	}
	return nil, errors.Join(errs...)
}

func hitOutcome(hit bool) string {
	if hit {
		return metrics.OutcomeOK
	}
	return "miss"
}

func stageNames(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, st := range stages {
		out[i] = string(st)
	}
	return out
}

// run carries the per-resolution bookkeeping.
type run struct {
	tracer trace.Tracer
	res    *Result
}

// do runs one stage in its own span and applies the stage policy. failed
// reports any failure; abort is a *StageError when the policy is Abort.
func (r *run) do(ctx context.Context, stage Stage, fn func(context.Context) error) (failed bool, abort error) {
	ctx, span := r.tracer.Start(ctx, "resolver."+string(stage))
	defer span.End()

	err := fn(ctx)
	if err == nil {
		r.record(ctx, span, stage, nil, metrics.OutcomeOK)
		return false, nil
	}
	if PolicyOf(stage) == Degrade {
		r.res.Degraded = append(r.res.Degraded, stage)
		r.record(ctx, span, stage, err, metrics.OutcomeDegraded)
		return true, nil
	}
	r.record(ctx, span, stage, err, metrics.OutcomeAborted)
	return true, &StageError{Stage: stage, Err: err}
}

// mark records a stage that did no work of its own.
func (r *run) mark(ctx context.Context, stage Stage, outcome string) {
	metrics.RecordStage(string(stage), outcome)
	trace.SpanFromContext(ctx).AddEvent(string(stage),
		trace.WithAttributes(telemetry.StageAttributes(string(stage), outcome)...))
}

func (r *run) store(ctx context.Context, s *Service, contentID, target string) {
	_, _ = r.do(ctx, StageCacheStore, func(ctx context.Context) error {
		return s.deps.Cache.Store(ctx, contentID, target, s.deps.Now())
	})
}

func (r *run) record(ctx context.Context, span trace.Span, stage Stage, err error, outcome string) {
	metrics.RecordStage(string(stage), outcome)
	span.SetAttributes(telemetry.StageAttributes(string(stage), outcome)...)
	if err == nil {
		return
	}
	telemetry.RecordError(span, err, string(stage), outcome == metrics.OutcomeAborted)

	logger := xglog.WithComponentFromContext(ctx, "resolver")
	evt := logger.Warn()
	if outcome == metrics.OutcomeAborted && !errors.Is(err, context.Canceled) {
		evt = logger.Error()
	}
	evt.Err(err).
		Str(xglog.FieldEvent, "resolve.stage_failed").
		Str(xglog.FieldStage, string(stage)).
		Str(xglog.FieldOutcome, outcome).
		Msg("resolution stage failed")
}
