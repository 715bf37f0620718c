package postgresengine

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"io/fs"
	"sort"
	"text/template"
	"time"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/library/postgresengine/internal/adapters"
)

// migrationLockID is the key of the advisory lock serializing concurrent migration runs.
const migrationLockID = 7_342_118_205

const createSchemaMigrationsTable = `CREATE TABLE IF NOT EXISTS ` + schemaMigrationsTableName + ` (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL
)`

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migrationTables struct {
	BooksTable        string
	TransactionsTable string
}

// Migrate creates or upgrades the schema for the configured table names.
//
// Migrations are applied in filename order, each in its own unit of work, and recorded in the
// schema_migrations table keyed by books table name and filename. Applied migrations are skipped,
// so Migrate is safe to call on every start and from concurrent processes.
func (e *Engine) Migrate(ctx context.Context) error {
	if _, err := e.db.Exec(ctx, createSchemaMigrationsTable); err != nil {
		return e.migrationFailed(ctx, "create "+schemaMigrationsTableName, err)
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return e.migrationFailed(ctx, "list migrations", err)
	}
	sort.Strings(names)

	tables := migrationTables{
		BooksTable:        e.queries.booksTable,
		TransactionsTable: e.queries.transactionsTable,
	}

	for _, name := range names {
		if err = e.applyMigration(ctx, name, tables); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) applyMigration(ctx context.Context, name string, tables migrationTables) error {
	statement, err := renderMigration(name, tables)
	if err != nil {
		return e.migrationFailed(ctx, name, err)
	}

	version := tables.BooksTable + ":" + name[len("migrations/"):]
	applied := false

	err = e.Atomically(ctx, func(ctx context.Context) error {
		if _, lockErr := e.executor(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(migrationLockID)); lockErr != nil {
			return errors.Join(library.ErrExecFailed, lockErr)
		}

		var count int64
		countErr := e.queryRows(
			ctx,
			operationMigrate,
			func() (sqlQueryString, sqlArgs, error) {
				return e.queries.buildCountAppliedMigrations(version)
			},
			func(rows adapters.DBRows) error {
				return rows.Scan(&count)
			},
		)
		if countErr != nil {
			return countErr
		}

		if count > 0 {
			return nil
		}

		if _, execErr := e.executor(ctx).Exec(ctx, statement); execErr != nil {
			return e.translateError(library.ErrExecFailed, execErr)
		}

		_, insertErr := e.execStatement(ctx, operationMigrate, func() (sqlQueryString, sqlArgs, error) {
			return e.queries.buildInsertAppliedMigration(version, library.ToTimestamp(time.Now()))
		})
		if insertErr != nil {
			return insertErr
		}

		applied = true

		return nil
	})
	if err != nil {
		return e.migrationFailed(ctx, name, err)
	}

	if applied {
		e.logOperation(ctx, logMsgOperation+operationMigrate, logAttrVersion, version)
	}

	return nil
}

func renderMigration(name string, tables migrationTables) (string, error) {
	tmpl, err := template.ParseFS(migrationFiles, name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, tables); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (e *Engine) migrationFailed(ctx context.Context, step string, err error) error {
	migrationErr := errors.Join(library.ErrMigrationFailed, err)
	e.logError(ctx, logMsgOperationFailed+operationMigrate, migrationErr, logAttrVersion, step)

	return migrationErr
}
