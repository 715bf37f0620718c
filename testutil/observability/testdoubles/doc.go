// Package testdoubles provides test doubles (spies) for the observability interfaces of the library.
//
//   - LogHandlerSpy: a slog.Handler capturing log records, wrap it with slog.New to get a ContextualLogger
//   - MetricsCollectorSpy: captures metrics recording calls for verification
//   - TracingCollectorSpy: captures tracing spans with their start and finish attributes
//
// These test doubles enable testing of observability instrumentation without telemetry backends.
package testdoubles
