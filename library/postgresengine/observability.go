package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

const (
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "library store operation: "
	logMsgOperationFailed     = "library store operation failed: "
	logMsgUnitOfWorkFailed    = "unit of work failed"
	logMsgUnitOfWorkCommitted = "unit of work committed"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgRollbackFailed      = "failed to roll back unit of work"
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrDurationMS         = "duration_ms"
	logAttrVersion            = "version"

	metricStoreDuration        = "library_store_operation_duration_seconds"
	metricStoreRows            = "library_store_rows_total"
	metricStoreErrors          = "library_store_errors_total"
	metricConcurrencyConflicts = "library_store_concurrency_conflicts_total"
	metricUnitOfWorkDuration   = "library_unit_of_work_duration_seconds"
	conflictTypeSerialization  = "serialization"

	spanNameStorePrefix = "librarystore."
	spanNameUnitOfWork  = "librarystore.unit_of_work"
	spanAttrOperation   = "operation"
	spanAttrErrorType   = "error_type"
	spanAttrRowCount    = "row_count"
	spanAttrDurationMS  = "duration_ms"
	spanAttrDBSystem    = "db.system"
	labelStatus         = "status"
	labelConflictType   = "conflict_type"
	statusSuccess       = "success"
	statusError         = "error"
	dbSystemPostgres    = "postgresql"
	operationUnitOfWork = "unit_of_work"
	errorTypeConflict   = "concurrency_conflict"
	errorTypeDuplicate  = "duplicate_key"
	errorTypeNotFound   = "not_found"
	errorTypeBuildQuery = "build_query"
	errorTypeScan       = "scan"
	errorTypeDatabase   = "database"
)

// Store operation names, used as log actions, metric labels and span name suffixes.
const (
	operationInsertBook               = "insert_book"
	operationUpdateBook               = "update_book"
	operationFindBookByID             = "find_book_by_id"
	operationFindBookByISBN           = "find_book_by_isbn"
	operationFindBooksByAvailability  = "find_books_by_availability"
	operationFindAllBooks             = "find_all_books"
	operationExistsByISBN             = "exists_by_isbn"
	operationInsertTransaction        = "insert_transaction"
	operationUpdateTransaction        = "update_transaction"
	operationFindTransactionByID      = "find_transaction_by_id"
	operationFindTransactionsByStatus = "find_transactions_by_status"
	operationFindTransactionsByBook   = "find_transactions_by_book"
	operationFindLatestPending        = "find_latest_pending_transaction"
	operationFindAllTransactions      = "find_all_transactions"
	operationMigrate                  = "migrate"
)

// errorType classifies an error for metric labels and span attributes.
func errorType(err error) string {
	switch {
	case errors.Is(err, library.ErrConcurrencyConflict):
		return errorTypeConflict
	case errors.Is(err, library.ErrDuplicateKey):
		return errorTypeDuplicate
	case errors.Is(err, library.ErrNotFound):
		return errorTypeNotFound
	case errors.Is(err, library.ErrBuildingQueryFailed):
		return errorTypeBuildQuery
	case errors.Is(err, library.ErrScanFailed):
		return errorTypeScan
	default:
		return errorTypeDatabase
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f", toMilliseconds(d))
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (e *Engine) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (e *Engine) logOperation(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

// logWarnContext logs non-critical issues at warn level.
func (e *Engine) logWarnContext(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// logError logs failures at error level.
func (e *Engine) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.logger != nil {
		e.logger.Error(msg, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// recordDuration records a duration metric, with context if the collector supports it.
func (e *Engine) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := e.metricsCollector.(library.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	e.metricsCollector.RecordDuration(metric, duration, labels)
}

// recordValue records a value metric, with context if the collector supports it.
func (e *Engine) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := e.metricsCollector.(library.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	e.metricsCollector.RecordValue(metric, value, labels)
}

// incrementCounter increments a counter metric, with context if the collector supports it.
func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := e.metricsCollector.(library.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	e.metricsCollector.IncrementCounter(metric, labels)
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
func (e *Engine) startTraceSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, library.SpanContext) {
	if e.tracingCollector != nil {
		return e.tracingCollector.StartSpan(ctx, name, attrs)
	}

	return ctx, nil
}

// finishTraceSpan finishes a tracing span if the tracing collector is configured.
func (e *Engine) finishTraceSpan(span library.SpanContext, status string, attrs map[string]string) {
	if e.tracingCollector != nil && span != nil {
		e.tracingCollector.FinishSpan(span, status, attrs)
	}
}

// === Observer Pattern ===
// The observers bundle logging, metrics and the tracing span of one operation.

// storeObserver observes a single store operation (one SQL statement).
type storeObserver struct {
	engine    *Engine
	operation string
	span      library.SpanContext
}

// startStoreObservation starts the tracing span of a store operation.
func (e *Engine) startStoreObservation(ctx context.Context, operation string) (*storeObserver, context.Context) {
	newCtx, span := e.startTraceSpan(ctx, spanNameStorePrefix+operation, map[string]string{
		spanAttrOperation: operation,
		spanAttrDBSystem:  dbSystemPostgres,
	})

	return &storeObserver{engine: e, operation: operation, span: span}, newCtx
}

// finishSuccess records the outcome of a successful store operation.
func (so *storeObserver) finishSuccess(ctx context.Context, rowCount int64, duration time.Duration) {
	labels := map[string]string{spanAttrOperation: so.operation, labelStatus: statusSuccess}

	so.engine.recordDuration(ctx, metricStoreDuration, duration, labels)
	so.engine.recordValue(ctx, metricStoreRows, float64(rowCount), labels)

	if so.span != nil {
		so.span.AddAttribute(spanAttrRowCount, fmt.Sprintf("%d", rowCount))
		so.span.AddAttribute(spanAttrDurationMS, formatDuration(duration))
	}

	so.engine.finishTraceSpan(so.span, statusSuccess, map[string]string{spanAttrRowCount: fmt.Sprintf("%d", rowCount)})
}

// finishError records the outcome of a failed store operation.
// Duplicate keys and concurrency conflicts are expected outcomes and are not logged as errors.
func (so *storeObserver) finishError(ctx context.Context, err error, duration time.Duration, logArgs ...any) {
	errType := errorType(err)
	labels := map[string]string{spanAttrOperation: so.operation, labelStatus: statusError}

	if duration > 0 {
		so.engine.recordDuration(ctx, metricStoreDuration, duration, labels)
	}

	so.engine.incrementCounter(ctx, metricStoreErrors, map[string]string{
		spanAttrOperation: so.operation,
		labelStatus:       statusError,
		spanAttrErrorType: errType,
	})

	switch errType {
	case errorTypeConflict:
		so.engine.incrementCounter(ctx, metricConcurrencyConflicts, map[string]string{
			spanAttrOperation: so.operation,
			labelConflictType: conflictTypeSerialization,
		})
		so.engine.logOperation(ctx, logMsgConcurrencyConflict, append([]any{spanAttrOperation, so.operation}, logArgs...)...)
	case errorTypeDuplicate:
		so.engine.logOperation(ctx, logMsgOperation+so.operation, append([]any{spanAttrErrorType, errType}, logArgs...)...)
	default:
		so.engine.logError(ctx, logMsgOperationFailed+so.operation, err, logArgs...)
	}

	if so.span != nil {
		so.span.AddAttribute(spanAttrErrorType, errType)
		if duration > 0 {
			so.span.AddAttribute(spanAttrDurationMS, formatDuration(duration))
		}
	}

	so.engine.finishTraceSpan(so.span, statusError, map[string]string{spanAttrErrorType: errType})
}

// unitOfWorkObserver observes a unit of work from BEGIN to COMMIT or ROLLBACK.
type unitOfWorkObserver struct {
	engine *Engine
	span   library.SpanContext
}

// startUnitOfWorkObservation starts the tracing span of a unit of work.
func (e *Engine) startUnitOfWorkObservation(ctx context.Context) (*unitOfWorkObserver, context.Context) {
	newCtx, span := e.startTraceSpan(ctx, spanNameUnitOfWork, map[string]string{
		spanAttrOperation: operationUnitOfWork,
		spanAttrDBSystem:  dbSystemPostgres,
	})

	return &unitOfWorkObserver{engine: e, span: span}, newCtx
}

// finishSuccess records a committed unit of work.
func (uo *unitOfWorkObserver) finishSuccess(ctx context.Context, duration time.Duration) {
	uo.engine.recordDuration(ctx, metricUnitOfWorkDuration, duration, map[string]string{
		spanAttrOperation: operationUnitOfWork,
		labelStatus:       statusSuccess,
	})
	uo.engine.logOperation(ctx, logMsgUnitOfWorkCommitted, logAttrDurationMS, toMilliseconds(duration))

	if uo.span != nil {
		uo.span.AddAttribute(spanAttrDurationMS, formatDuration(duration))
	}

	uo.engine.finishTraceSpan(uo.span, statusSuccess, nil)
}

// finishError records a rolled back unit of work.
// Business errors returned by the callback are logged at info level only.
func (uo *unitOfWorkObserver) finishError(ctx context.Context, err error, duration time.Duration) {
	errType := errorType(err)

	uo.engine.recordDuration(ctx, metricUnitOfWorkDuration, duration, map[string]string{
		spanAttrOperation: operationUnitOfWork,
		labelStatus:       statusError,
	})

	if library.IsBusinessError(err) || errType == errorTypeConflict {
		uo.engine.logOperation(ctx, logMsgUnitOfWorkFailed, logAttrError, err.Error(), logAttrDurationMS, toMilliseconds(duration))
	} else {
		uo.engine.logError(ctx, logMsgUnitOfWorkFailed, err, logAttrDurationMS, toMilliseconds(duration))
	}

	if uo.span != nil {
		uo.span.AddAttribute(spanAttrErrorType, errType)
		uo.span.AddAttribute(spanAttrDurationMS, formatDuration(duration))
	}

	uo.engine.finishTraceSpan(uo.span, statusError, map[string]string{spanAttrErrorType: errType})
}
