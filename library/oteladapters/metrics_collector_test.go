package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-borrowing-go/library/oteladapters"
)

func newMeteredCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "Failed to collect metrics")

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	collector, reader := newMeteredCollector()

	collector.RecordDuration("library_store_operation_duration_seconds", 150*time.Millisecond, map[string]string{
		"operation": "find_book_by_isbn",
		"status":    "success",
	})

	histogram := findHistogramMetric(t, collect(t, reader), "library_store_operation_duration_seconds")
	require.Len(t, histogram.DataPoints, 1, "Expected exactly one data point")

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "Histogram sum should be 0.15 seconds")

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "find_book_by_isbn"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs), "Attributes should match")
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	collector, reader := newMeteredCollector()
	labels := map[string]string{"operation_type": "borrowing.create", "status": "success"}

	collector.IncrementCounter("library_service_operation_calls_total", labels)
	collector.IncrementCounter("library_service_operation_calls_total", labels)
	collector.IncrementCounterContext(context.Background(), "library_service_operation_calls_total", labels)

	counter := findCounterMetric(t, collect(t, reader), "library_service_operation_calls_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(3), counter.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	collector, reader := newMeteredCollector()

	collector.RecordValue("library_store_rows_total", 5, map[string]string{"operation": "find_all_books"})
	collector.RecordValueContext(context.Background(), "library_store_rows_total", 7, map[string]string{"operation": "find_all_books"})

	gauge := findGaugeMetric(t, collect(t, reader), "library_store_rows_total")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 7.0, gauge.DataPoints[0].Value, 0.0001, "Gauge should hold the last value")
}

func Test_MetricsCollector_SeparatesLabelSets(t *testing.T) {
	collector, reader := newMeteredCollector()

	collector.IncrementCounter("library_store_errors_total", map[string]string{"error_type": "query"})
	collector.IncrementCounter("library_store_errors_total", map[string]string{"error_type": "exec"})

	counter := findCounterMetric(t, collect(t, reader), "library_store_errors_total")
	assert.Len(t, counter.DataPoints, 2)
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	collector, reader := newMeteredCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("library_concurrent_total", nil)
			collector.RecordDuration("library_concurrent_duration_seconds", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	counter := findCounterMetric(t, collect(t, reader), "library_concurrent_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(20), counter.DataPoints[0].Value)
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Histogram[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, metric := range scopeMetrics.Metrics {
			if metric.Name == name {
				if h, ok := metric.Data.(metricdata.Histogram[float64]); ok {
					return &h
				}
			}
		}
	}
	t.Fatalf("Histogram metric %s not found", name)
	return nil
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Sum[int64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, metric := range scopeMetrics.Metrics {
			if metric.Name == name {
				if c, ok := metric.Data.(metricdata.Sum[int64]); ok {
					return &c
				}
			}
		}
	}
	t.Fatalf("Counter metric %s not found", name)
	return nil
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Gauge[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, metric := range scopeMetrics.Metrics {
			if metric.Name == name {
				if g, ok := metric.Data.(metricdata.Gauge[float64]); ok {
					return &g
				}
			}
		}
	}
	t.Fatalf("Gauge metric %s not found", name)
	return nil
}
