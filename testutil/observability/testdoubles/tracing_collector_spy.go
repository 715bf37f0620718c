package testdoubles

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// SpanContextSpy implements the SpanContext interface for testing tracing functionality.
type SpanContextSpy struct {
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements the SpanContext interface.
func (s *SpanContextSpy) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// AddAttribute implements the SpanContext interface.
func (s *SpanContextSpy) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
}

// GetAttributes returns a copy of all attributes added while the span was active.
func (s *SpanContextSpy) GetAttributes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.attributes)
}

// SpanRecord represents a recorded span for testing.
type SpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
	SpanContext     *SpanContextSpy
}

// TracingCollectorSpy is a TracingCollector implementation that captures tracing calls for testing.
type TracingCollectorSpy struct {
	spanRecords []SpanRecord
	mu          sync.Mutex
	recordCalls bool
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
// Set recordCalls to true to capture all tracing calls for inspection in tests.
func NewTracingCollectorSpy(recordCalls bool) *TracingCollectorSpy {
	return &TracingCollectorSpy{
		spanRecords: make([]SpanRecord, 0),
		recordCalls: recordCalls,
	}
}

// StartSpan implements the TracingCollector interface.
func (c *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, library.SpanContext) {
	if !c.recordCalls {
		return ctx, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	spanCtx := &SpanContextSpy{attributes: make(map[string]string)}

	c.spanRecords = append(c.spanRecords, SpanRecord{
		Name:            name,
		StartAttributes: maps.Clone(attrs),
		SpanContext:     spanCtx,
	})

	return ctx, spanCtx
}

// FinishSpan implements the TracingCollector interface.
func (c *TracingCollectorSpy) FinishSpan(spanCtx library.SpanContext, status string, attrs map[string]string) {
	if !c.recordCalls || spanCtx == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	spy, ok := spanCtx.(*SpanContextSpy)
	if !ok {
		return
	}

	for i := range c.spanRecords {
		if c.spanRecords[i].SpanContext == spy {
			c.spanRecords[i].Status = status
			c.spanRecords[i].EndAttributes = maps.Clone(attrs)
			c.spanRecords[i].Finished = true

			break
		}
	}
}

// GetSpanRecords returns a copy of all captured span records.
func (c *TracingCollectorSpy) GetSpanRecords() []SpanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]SpanRecord, len(c.spanRecords))
	copy(records, c.spanRecords)

	return records
}

// FindSpan returns the first span record with the given name.
func (c *TracingCollectorSpy) FindSpan(name string) (SpanRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range c.spanRecords {
		if record.Name == name {
			return record, true
		}
	}

	return SpanRecord{}, false
}

// Reset clears all captured span records.
func (c *TracingCollectorSpy) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.spanRecords = c.spanRecords[:0]
}
