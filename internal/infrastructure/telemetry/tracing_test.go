package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// setupTestTracer installs an in-memory span recorder as the global tracer
// provider for the duration of the test
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)
	connID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "sync.orders",
		telemetry.SpanAttrConnectionID, connID,
		telemetry.SpanAttrPlatform, integration.PlatformTaobao,
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.orders", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
	assert.Equal(t, connID.String(), attrValue(spans[0], telemetry.SpanAttrConnectionID))
	assert.Equal(t, integration.PlatformTaobao.String(), attrValue(spans[0], telemetry.SpanAttrPlatform))
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.connection")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSyncedCount, 50,
		telemetry.SpanAttrErrorCount, int64(2),
		telemetry.SpanAttrSyncState, "COMPLETED",
		42, "non-string key is skipped",
		"dangling",
	)
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, "50", attrValue(s, telemetry.SpanAttrSyncedCount))
	assert.Equal(t, "2", attrValue(s, telemetry.SpanAttrErrorCount))
	assert.Equal(t, "COMPLETED", attrValue(s, telemetry.SpanAttrSyncState))
	assert.Len(t, s.Attributes(), 3)
}

func TestRecordErrorAndSetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, failed := telemetry.StartSpan(context.Background(), "failed")
	telemetry.RecordError(failed, errors.New("auth failed"))
	failed.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	telemetry.SetOK(ok)
	ok.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "auth failed", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.connection")
	telemetry.AddEvent(span, "page_fetched", telemetry.SpanAttrRecordCount, 50)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "page_fetched", events[0].Name)
	assert.Equal(t, int64(50), events[0].Attributes[0].Value.AsInt64())
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}

func attrValue(s sdktrace.ReadOnlySpan, key string) string {
	for _, a := range s.Attributes() {
		if string(a.Key) == key {
			return a.Value.Emit()
		}
	}
	return ""
}
