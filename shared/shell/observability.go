package shell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

const (
	// ServiceOperationDurationMetric tracks service operation execution duration (OpenTelemetry-compatible).
	ServiceOperationDurationMetric = "library_service_operation_duration_seconds"

	// ServiceOperationCallsMetric tracks total service operation calls.
	ServiceOperationCallsMetric = "library_service_operation_calls_total"

	// RetriesMetric tracks retry attempts of units of work.
	//
	// Labels:
	//   - operation_type: Operation being retried (e.g., "borrowing.create")
	//   - attempt_number: Which retry attempt (1, 2, 3, 4, 5)
	//   - error_type: Category of error causing retry (e.g., "concurrency_conflict")
	RetriesMetric = "library_service_retries_total"

	// RetryDelayMetric tracks the backoff delays before retries.
	RetryDelayMetric = "library_service_retry_delay_seconds"

	// MaxRetriesReachedMetric tracks when max retries are exhausted.
	//
	// Use cases:
	//   - Alert on retry exhaustion: increase(library_service_max_retries_reached_total[5m]) > 0
	MaxRetriesReachedMetric = "library_service_max_retries_reached_total"

	// StatusSuccess indicates successful completion.
	StatusSuccess = "success"

	// StatusRejected indicates the operation was refused for a business reason (validation, duplicate, not found, state).
	StatusRejected = "rejected"

	// StatusError indicates a technical failure.
	StatusError = "error"

	// StatusCanceled indicates the operation was canceled due to context cancellation.
	StatusCanceled = "canceled"

	// StatusTimeout indicates the operation timed out due to context deadline exceeded.
	StatusTimeout = "timeout"

	// StatusConcurrencyConflict indicates the operation lost against concurrent ones, even after retries.
	StatusConcurrencyConflict = "concurrency_conflict"

	// LogMsgOperationStarted is logged when a service operation begins.
	LogMsgOperationStarted = "service operation started"

	// LogMsgOperationCompleted is logged when a service operation succeeds.
	LogMsgOperationCompleted = "service operation completed"

	// LogMsgOperationRejected is logged when a service operation is refused for a business reason.
	LogMsgOperationRejected = "service operation rejected"

	// LogMsgOperationFailed is logged when a service operation fails.
	LogMsgOperationFailed = "service operation failed"

	// LogAttrOperationType identifies the operation in logs, metric labels and spans.
	LogAttrOperationType = "operation_type"

	// LogAttrStatus indicates the outcome of the operation.
	LogAttrStatus = "status"

	// LogAttrDurationMS indicates the processing duration in milliseconds.
	LogAttrDurationMS = "duration_ms"

	// LogAttrError contains error details.
	LogAttrError = "error"

	// SpanNameServiceOperation is the tracing span name for service operations.
	SpanNameServiceOperation = "libraryservice.handle"

	labelAttemptNumber  = "attempt_number"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"
)

// Interface aliases for convenience, matching the observability interfaces of the library package.

// MetricsCollector interface for collecting service performance metrics.
type MetricsCollector = library.MetricsCollector

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
type ContextualMetricsCollector = library.ContextualMetricsCollector

// TracingCollector interface for distributed tracing in services.
type TracingCollector = library.TracingCollector

// SpanContext represents an active tracing span.
type SpanContext = library.SpanContext

// ContextualLogger interface for context-aware logging in services.
type ContextualLogger = library.ContextualLogger

// Observability bundles the optional collectors of a service. Any of them may be nil.
type Observability struct {
	Logger  ContextualLogger
	Metrics MetricsCollector
	Tracing TracingCollector
}

// ClassifyOutcome maps the result of an operation to a status label.
func ClassifyOutcome(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, library.ErrConcurrencyConflict):
		return StatusConcurrencyConflict
	case library.IsBusinessError(err):
		return StatusRejected
	default:
		return StatusError
	}
}

// BuildOperationLabels creates standard metric labels for service operations.
func BuildOperationLabels(operationType, status string) map[string]string {
	return map[string]string{
		LogAttrOperationType: operationType,
		LogAttrStatus:        status,
	}
}

// BuildRetryLabels creates standard metric labels for retry operations.
func BuildRetryLabels(operationType string, attemptNumber int, errorType string) map[string]string {
	return map[string]string{
		LogAttrOperationType: operationType,
		labelAttemptNumber:   fmt.Sprintf("%d", attemptNumber),
		labelErrorType:       errorType,
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with precision.
func ToMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// RecordOperationMetrics records duration and call count of a service operation.
// It handles both context-aware and basic metrics collectors automatically.
func RecordOperationMetrics(
	ctx context.Context,
	collector MetricsCollector,
	operationType string,
	status string,
	duration time.Duration,
) {

	if collector == nil {
		return
	}

	labels := BuildOperationLabels(operationType, status)

	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, ServiceOperationDurationMetric, duration, labels)
		contextualCollector.IncrementCounterContext(ctx, ServiceOperationCallsMetric, labels)
	} else {
		collector.RecordDuration(ServiceOperationDurationMetric, duration, labels)
		collector.IncrementCounter(ServiceOperationCallsMetric, labels)
	}
}

// StartOperationSpan starts a distributed tracing span for a service operation.
// Returns the updated context and span context, or original context and nil if tracing is disabled.
func StartOperationSpan(
	ctx context.Context,
	tracingCollector TracingCollector,
	operationType string,
) (context.Context, SpanContext) {

	if tracingCollector == nil {
		return ctx, nil
	}

	return tracingCollector.StartSpan(ctx, SpanNameServiceOperation, map[string]string{
		LogAttrOperationType: operationType,
	})
}

// FinishOperationSpan completes a distributed tracing span with the operation outcome.
func FinishOperationSpan(
	tracingCollector TracingCollector,
	span SpanContext,
	status string,
	duration time.Duration,
	err error,
) {

	if tracingCollector == nil || span == nil {
		return
	}

	attrs := map[string]string{
		LogAttrStatus:     status,
		LogAttrDurationMS: formatDurationMS(duration),
	}

	if err != nil {
		attrs[LogAttrError] = err.Error()
	}

	tracingCollector.FinishSpan(span, status, attrs)
}

// OperationObserver follows one service operation from start to finish.
type OperationObserver struct {
	observability Observability
	operationType string
	span          SpanContext
	start         time.Time
}

// StartOperation logs the start of a service operation and opens its tracing span.
func StartOperation(
	ctx context.Context,
	observability Observability,
	operationType string,
) (*OperationObserver, context.Context) {

	ctx, span := StartOperationSpan(ctx, observability.Tracing, operationType)

	if observability.Logger != nil {
		observability.Logger.DebugContext(ctx, LogMsgOperationStarted, LogAttrOperationType, operationType)
	}

	return &OperationObserver{
		observability: observability,
		operationType: operationType,
		span:          span,
		start:         time.Now(),
	}, ctx
}

// Finish records metrics, logs the outcome and closes the span.
// Business rejections are logged at info level, technical failures at error level.
func (o *OperationObserver) Finish(ctx context.Context, err error) {
	duration := time.Since(o.start)
	status := ClassifyOutcome(err)

	RecordOperationMetrics(ctx, o.observability.Metrics, o.operationType, status, duration)
	o.log(ctx, status, duration, err)
	FinishOperationSpan(o.observability.Tracing, o.span, status, duration, err)
}

func (o *OperationObserver) log(ctx context.Context, status string, duration time.Duration, err error) {
	logger := o.observability.Logger
	if logger == nil {
		return
	}

	args := []any{
		LogAttrOperationType, o.operationType,
		LogAttrStatus, status,
		LogAttrDurationMS, ToMilliseconds(duration),
	}

	switch status {
	case StatusSuccess:
		logger.InfoContext(ctx, LogMsgOperationCompleted, args...)
	case StatusRejected:
		logger.InfoContext(ctx, LogMsgOperationRejected, append(args, LogAttrError, err.Error())...)
	default:
		logger.ErrorContext(ctx, LogMsgOperationFailed, append(args, LogAttrError, err.Error())...)
	}
}

// formatDurationMS formats duration in milliseconds for span attributes.
func formatDurationMS(duration time.Duration) string {
	return fmt.Sprintf("%.2f", ToMilliseconds(duration))
}
