// Package oteladapters provides OpenTelemetry adapters for the observability interfaces of the library package.
// These adapters plug the stores and services into OpenTelemetry without implementing the interfaces by hand:
//
//   - SlogBridgeLogger: library.ContextualLogger via the otelslog bridge, with trace correlation
//   - TracingCollector: library.TracingCollector on an OpenTelemetry tracer
//   - MetricsCollector: library.ContextualMetricsCollector on an OpenTelemetry meter
package oteladapters
