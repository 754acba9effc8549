// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestResolutionAttributes(t *testing.T) {
	attrs := ResolutionAttributes("42", true, false, true)
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(ContentIDKey, "42"),
		attribute.Bool(CacheHitKey, true),
		attribute.Bool(RedirectedKey, false),
		attribute.Bool(DRMFoundKey, true),
	}, attrs)
}

func TestRecordError_NilIsNoop(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer("t").Start(t.Context(), "s")
	RecordError(span, nil, "x", true)
	RecordError(span, errors.New("boom"), "x", false)
	span.End()
}
