package postgresengine

import (
	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithBooksTableName sets the table name for books.
func WithBooksTableName(tableName string) Option {
	return func(e *Engine) error {
		if tableName == "" {
			return library.ErrEmptyTableName
		}

		e.queries.booksTable = tableName

		return nil
	}
}

// WithTransactionsTableName sets the table name for borrowing transactions.
func WithTransactionsTableName(tableName string) Option {
	return func(e *Engine) error {
		if tableName == "" {
			return library.ErrEmptyTableName
		}

		e.queries.transactionsTable = tableName

		return nil
	}
}

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Unit of work outcomes and row counts (production-safe)
// Warn level: Non-critical issues like rollback or cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger library.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// It receives the same messages as the Logger but with the context, enabling trace correlation.
func WithContextualLogger(logger library.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// It receives statement durations, row counts, database errors and concurrency conflicts.
func WithMetrics(collector library.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
// One span is created per store operation and per unit of work.
func WithTracing(collector library.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}
