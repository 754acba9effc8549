// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test", ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "invalid"})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: invalid (supported: grpc, http)", err.Error())
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestProviderWithExporter_RecordsSpans(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewProviderWithExporter(ctx, Config{ServiceName: "mpdgate", SamplingRate: 1}, exporter)
	require.NoError(t, err)

	_, span := Tracer("test").Start(ctx, "resolve")
	span.SetAttributes(StageAttributes("decode", "aborted")...)
	RecordError(span, errors.New("bad pointer"), "decode", true)
	span.End()

	// Shutdown resets the in-memory exporter, so read the spans after a flush.
	require.NoError(t, provider.tp.ForceFlush(ctx))
	spans := exporter.GetSpans()
	require.NoError(t, provider.Shutdown(ctx))
	require.Len(t, spans, 1)
	assert.Equal(t, "resolve", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String(StageKey, "decode"))
	assert.Contains(t, spans[0].Attributes, attribute.String(ErrorTypeKey, "decode"))
}
