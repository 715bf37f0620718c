package adapters

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// DriverError is a driver independent view on a PostgreSQL error.
type DriverError struct {
	Code       string // SQLSTATE
	Constraint string
	Err        error
}

func (e *DriverError) Error() string {
	return e.Err.Error()
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// classifyPGXError wraps a *pgconn.PgError into a DriverError, other errors pass through unchanged.
func classifyPGXError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &DriverError{Code: pgErr.Code, Constraint: pgErr.ConstraintName, Err: err}
	}

	return err
}

// classifyPQError wraps a *pq.Error into a DriverError, other errors pass through unchanged.
func classifyPQError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DriverError{Code: string(pqErr.Code), Constraint: pqErr.Constraint, Err: err}
	}

	return err
}
