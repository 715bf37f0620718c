package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/library/postgresengine/internal/adapters"
)

// PostgreSQL error codes (SQLSTATE) the engine translates.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// unitOfWorkKey is the context key carrying the transaction of the current unit of work.
type unitOfWorkKey struct{}

// Engine is the PostgreSQL persistence engine. It implements library.Engine.
type Engine struct {
	db               adapters.DBAdapter
	queries          queryBuilder
	logger           library.Logger
	contextualLogger library.ContextualLogger
	metricsCollector library.MetricsCollector
	tracingCollector library.TracingCollector
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, library.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options...)
}

// NewEngineFromPGXPoolAndReplica creates a new Engine using a pgx Pool for writes and strongly
// consistent reads, and a replica pool for reads made with library.WithEventualConsistency.
func NewEngineFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil || replica == nil {
		return nil, library.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB (lib/pq driver) with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, library.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options...)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, library.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options...)
}

func newEngine(db adapters.DBAdapter, options ...Option) (*Engine, error) {
	e := &Engine{
		db:      db,
		queries: newQueryBuilder(),
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Books returns the BookStore of this engine.
func (e *Engine) Books() library.BookStore {
	return bookStore{engine: e}
}

// Transactions returns the TransactionStore of this engine.
func (e *Engine) Transactions() library.TransactionStore {
	return transactionStore{engine: e}
}

// Atomically runs fn inside a serializable database transaction.
//
// The transaction is carried in the context handed to fn. If ctx already carries one, fn joins it
// and the outer call decides about commit or rollback. Any error returned by fn, and any panic,
// rolls the transaction back. Serialization failures are reported as library.ErrConcurrencyConflict.
func (e *Engine) Atomically(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inUnitOfWork(ctx) {
		return fn(ctx)
	}

	observer, ctx := e.startUnitOfWorkObservation(ctx)
	start := time.Now()

	tx, beginErr := e.db.BeginTx(ctx)
	if beginErr != nil {
		err = e.translateError(library.ErrBeginTxFailed, beginErr)
		observer.finishError(ctx, err, time.Since(start))

		return err
	}

	txCtx := library.MarkUnitOfWork(context.WithValue(ctx, unitOfWorkKey{}, tx))

	defer func() {
		if recovered := recover(); recovered != nil {
			e.rollback(ctx, tx)
			observer.finishError(ctx, fmt.Errorf("panic: %v", recovered), time.Since(start))
			panic(recovered)
		}
	}()

	if fnErr := fn(txCtx); fnErr != nil {
		e.rollback(ctx, tx)
		observer.finishError(ctx, fnErr, time.Since(start))

		return fnErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		err = e.translateError(library.ErrCommitFailed, commitErr)
		observer.finishError(ctx, err, time.Since(start))

		return err
	}

	observer.finishSuccess(ctx, time.Since(start))

	return nil
}

// rollback rolls the transaction back and logs a failure to do so.
func (e *Engine) rollback(ctx context.Context, tx adapters.DBTx) {
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		e.logWarnContext(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
	}
}

// inUnitOfWork reports whether the context carries the transaction of a unit of work.
func inUnitOfWork(ctx context.Context) bool {
	_, ok := ctx.Value(unitOfWorkKey{}).(adapters.DBTx)
	return ok
}

// executor returns the transaction of the current unit of work, or the connection pool.
func (e *Engine) executor(ctx context.Context) adapters.DBExecutor {
	if tx, ok := ctx.Value(unitOfWorkKey{}).(adapters.DBTx); ok {
		return tx
	}

	return e.db
}

// queryRows builds and runs a query and hands every row to scan.
func (e *Engine) queryRows(
	ctx context.Context,
	operation string,
	build func() (sqlQueryString, sqlArgs, error),
	scan func(rows adapters.DBRows) error,
) error {

	observer, ctx := e.startStoreObservation(ctx, operation)

	sqlQuery, args, buildErr := build()
	if buildErr != nil {
		observer.finishError(ctx, buildErr, 0)
		return buildErr
	}

	start := time.Now()
	rows, queryErr := e.executor(ctx).Query(ctx, sqlQuery, args...)
	if queryErr != nil {
		err := e.translateError(library.ErrQueryFailed, queryErr)
		observer.finishError(ctx, err, time.Since(start), logAttrQuery, sqlQuery)

		return err
	}
	defer e.closeRows(ctx, rows)

	rowCount := 0
	for rows.Next() {
		if scanErr := scan(rows); scanErr != nil {
			err := errors.Join(library.ErrScanFailed, scanErr)
			observer.finishError(ctx, err, time.Since(start), logAttrQuery, sqlQuery)

			return err
		}
		rowCount++
	}

	if iterErr := rows.Err(); iterErr != nil {
		err := e.translateError(library.ErrQueryFailed, iterErr)
		observer.finishError(ctx, err, time.Since(start), logAttrQuery, sqlQuery)

		return err
	}

	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, operation, duration)
	observer.finishSuccess(ctx, int64(rowCount), duration)

	return nil
}

// execStatement builds and runs a statement and returns the number of affected rows.
func (e *Engine) execStatement(
	ctx context.Context,
	operation string,
	build func() (sqlQueryString, sqlArgs, error),
) (int64, error) {

	observer, ctx := e.startStoreObservation(ctx, operation)

	sqlQuery, args, buildErr := build()
	if buildErr != nil {
		observer.finishError(ctx, buildErr, 0)
		return 0, buildErr
	}

	start := time.Now()
	result, execErr := e.executor(ctx).Exec(ctx, sqlQuery, args...)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, operation, duration)

	if execErr != nil {
		err := e.translateError(library.ErrExecFailed, execErr)
		observer.finishError(ctx, err, duration, logAttrQuery, sqlQuery)

		return 0, err
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		err := errors.Join(library.ErrExecFailed, rowsAffectedErr)
		observer.finishError(ctx, err, duration)

		return 0, err
	}

	observer.finishSuccess(ctx, rowsAffected, duration)

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (e *Engine) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		e.logWarnContext(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// translateError joins the operation error with a library error derived from the driver error.
func (e *Engine) translateError(operationErr error, driverErr error) error {
	var de *adapters.DriverError
	if !errors.As(driverErr, &de) {
		return errors.Join(operationErr, driverErr)
	}

	switch de.Code {
	case codeUniqueViolation:
		switch de.Constraint {
		case e.queries.onePendingPerBookIndex():
			return errors.Join(library.ErrConcurrencyConflict, operationErr, driverErr)
		case e.queries.uniqueISBNConstraint():
			return errors.Join(library.ErrDuplicateKey, operationErr, driverErr)
		default:
			return errors.Join(operationErr, driverErr)
		}

	case codeForeignKeyViolation:
		return errors.Join(library.ErrNotFound, operationErr, driverErr)

	case codeSerializationFailure, codeDeadlockDetected:
		return errors.Join(library.ErrConcurrencyConflict, operationErr, driverErr)

	default:
		return errors.Join(operationErr, driverErr)
	}
}
