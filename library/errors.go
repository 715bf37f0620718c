package library

import (
	"errors"
)

// Business errors, surfaced to clients as 4xx responses.
var (
	// ErrValidationFailed is returned when a required field is missing or blank or an enum value is unknown.
	ErrValidationFailed = errors.New("validation failed")

	// ErrDuplicateKey is returned when a book with the same ISBN is already registered.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned when no entity exists for the given key.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not permitted given the current status.
	ErrInvalidState = errors.New("invalid state")
)

// Infrastructure errors.
var (
	// ErrConcurrencyConflict is returned when a unit of work lost a race against a concurrent one.
	// It is the only error that is retried.
	ErrConcurrencyConflict = errors.New("concurrency conflict, unit of work must be retried")

	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("empty table name supplied")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryFailed           = errors.New("querying the database failed")
	ErrExecFailed            = errors.New("executing the statement failed")
	ErrScanFailed            = errors.New("scanning db row failed")
	ErrBeginTxFailed         = errors.New("beginning the database transaction failed")
	ErrCommitFailed          = errors.New("committing the database transaction failed")
	ErrMigrationFailed       = errors.New("applying the schema migration failed")
)

// IsBusinessError reports whether err is one of the business errors a client can act upon.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState)
}
