package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/library-borrowing-go/library/oteladapters"
)

func newTracedCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	collector, exporter := newTracedCollector()

	ctx, spanCtx := collector.StartSpan(context.Background(), "librarystore.insert_book", map[string]string{
		"operation": "insert_book",
		"db.system": "postgresql",
	})
	require.NotNil(t, spanCtx)
	assert.True(t, oteltrace.SpanContextFromContext(ctx).IsValid(), "Context should carry the span")

	collector.FinishSpan(spanCtx, "success", map[string]string{"rows": "1"})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "librarystore.insert_book", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)
	assertSpanHasAttribute(t, span, "operation", "insert_book")
	assertSpanHasAttribute(t, span, "db.system", "postgresql")
	assertSpanHasAttribute(t, span, "rows", "1")
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	testCases := []struct {
		status       string
		expectedCode codes.Code
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "rejected", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error},
		{status: "canceled", expectedCode: codes.Error},
		{status: "timeout", expectedCode: codes.Error},
		{status: "concurrency_conflict", expectedCode: codes.Error},
		{status: "something_else", expectedCode: codes.Unset},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			collector, exporter := newTracedCollector()

			_, spanCtx := collector.StartSpan(context.Background(), "libraryservice.handle", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)
		})
	}
}

func Test_TracingCollector_NestedSpansShareTrace(t *testing.T) {
	collector, exporter := newTracedCollector()

	ctx, parent := collector.StartSpan(context.Background(), "libraryservice.handle", nil)
	_, child := collector.StartSpan(ctx, "librarystore.find_book_by_id", nil)
	collector.FinishSpan(child, "success", nil)
	collector.FinishSpan(parent, "success", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[0].SpanContext.TraceID(), spans[1].SpanContext.TraceID())
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	collector, exporter := newTracedCollector()

	_, spanCtx := collector.StartSpan(context.Background(), "libraryservice.handle", nil)
	spanCtx.AddAttribute("book_isbn", "978-0547928241")
	collector.FinishSpan(spanCtx, "success", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assertSpanHasAttribute(t, spans[0], "book_isbn", "978-0547928241")
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) {
			assert.Equal(t, expectedValue, attr.Value.AsString(), "Attribute %s has the wrong value", key)
			return
		}
	}

	t.Errorf("Span attribute %s not found", key)
}
