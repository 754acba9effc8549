// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the resolution spans.
const (
	ContentIDKey  = "mpdgate.content_id"
	StageKey      = "mpdgate.stage"
	OutcomeKey    = "mpdgate.outcome"
	CacheHitKey   = "mpdgate.cache_hit"
	RedirectedKey = "mpdgate.redirected"
	DRMFoundKey   = "mpdgate.drm_found"
	BackendKey    = "mpdgate.cache_backend"

	ErrorTypeKey = "error.type"
)

// ResolutionAttributes describes a finished resolution.
func ResolutionAttributes(contentID string, cacheHit, redirected, drmFound bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ContentIDKey, contentID),
		attribute.Bool(CacheHitKey, cacheHit),
		attribute.Bool(RedirectedKey, redirected),
		attribute.Bool(DRMFoundKey, drmFound),
	}
}

// StageAttributes describes one pipeline stage.
func StageAttributes(stage, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StageKey, stage),
		attribute.String(OutcomeKey, outcome),
	}
}

// RecordError marks span as failed. Degraded stages keep an Unset status so
// only aborting failures show up as trace errors.
func RecordError(span trace.Span, err error, errorType string, fatal bool) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(ErrorTypeKey, errorType))
	if fatal {
		span.SetStatus(codes.Error, errorType)
	}
}
