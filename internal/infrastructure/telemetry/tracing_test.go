package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	t.Run("creates span with attributes", func(t *testing.T) {
		tracer := provider.Tracer(TracerName)
		_, span := tracer.Start(context.Background(), "billing.process_webhook")
		SetAttributes(span,
			SpanAttrStripeEventID, "evt_1",
			SpanAttrPlan, "pro",
		)
		span.End()

		spans := exporter.GetSpans()
		assert.Len(t, spans, 1)
		assert.Equal(t, "billing.process_webhook", spans[0].Name)
		assert.Contains(t, spans[0].Attributes, attribute.String(SpanAttrStripeEventID, "evt_1"))
		exporter.Reset()
	})

	t.Run("records errors on span", func(t *testing.T) {
		tracer := provider.Tracer(TracerName)
		_, span := tracer.Start(context.Background(), "quota.check")
		RecordError(span, errors.New("backend unavailable"))
		span.End()

		spans := exporter.GetSpans()
		assert.Len(t, spans, 1)
		assert.Len(t, spans[0].Events, 1)
		exporter.Reset()
	})
}

func TestSetAttributes_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, "key", "value")
		SetAttribute(nil, "key", "value")
		RecordError(nil, errors.New("err"))
		AddEvent(nil, "event")
		SetOK(nil)
	})
}

func TestToAttribute(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		value    interface{}
		expected attribute.KeyValue
	}{
		{"string", "hello", attribute.String("k", "hello")},
		{"int", 42, attribute.Int("k", 42)},
		{"int64", int64(42), attribute.Int64("k", 42)},
		{"float64", 1.5, attribute.Float64("k", 1.5)},
		{"bool", true, attribute.Bool("k", true)},
		{"stringer", id, attribute.String("k", id.String())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toAttribute("k", tt.value))
		})
	}
}
