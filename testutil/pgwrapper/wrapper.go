package pgwrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-borrowing-go/library/postgresengine"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell/config"
)

const (
	// EnvTestDSN holds the DSN of the integration test database.
	EnvTestDSN = "LIBRARY_TEST_DSN"

	// EnvAdapterType selects the database adapter: pgx (default), sql.db or sqlx.db.
	EnvAdapterType = "ADAPTER_TYPE"
)

// Wrapper abstracts over the different database handles an Engine can be built from.
type Wrapper interface {
	Engine() *postgresengine.Engine
	BooksTable() string
	TransactionsTable() string
	Exec(ctx context.Context, statement string) error
	Close()
}

type tables struct {
	books        string
	transactions string
}

func (t tables) BooksTable() string        { return t.books }
func (t tables) TransactionsTable() string { return t.transactions }

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	tables
	pool   *pgxpool.Pool
	engine *postgresengine.Engine
}

func (w *PGXPoolWrapper) Engine() *postgresengine.Engine { return w.engine }

func (w *PGXPoolWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.pool.Exec(ctx, statement)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	tables
	db     *sql.DB
	engine *postgresengine.Engine
}

func (w *SQLDBWrapper) Engine() *postgresengine.Engine { return w.engine }

func (w *SQLDBWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	tables
	db     *sqlx.DB
	engine *postgresengine.Engine
}

func (w *SQLXWrapper) Engine() *postgresengine.Engine { return w.engine }

func (w *SQLXWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// New opens a database connection with the adapter from the environment and builds an Engine on
// tables unique to this test, so tests can run in parallel against one database. The schema is
// migrated, and dropped again when the test finishes.
func New(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	dsn := os.Getenv(EnvTestDSN)
	if dsn == "" {
		t.Skipf("%s is not set, skipping PostgreSQL integration test", EnvTestDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names := uniqueTables()
	options = append([]postgresengine.Option{
		postgresengine.WithBooksTableName(names.books),
		postgresengine.WithTransactionsTableName(names.transactions),
	}, options...)

	wrapper := open(ctx, t, dsn, names, options)

	require.NoError(t, wrapper.Engine().Migrate(ctx), "migrating the test schema failed")

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()

		DropTables(cleanupCtx, t, wrapper)
		wrapper.Close()
	})

	return wrapper
}

func open(ctx context.Context, t testing.TB, dsn string, names tables, options []postgresengine.Option) Wrapper {
	adapterFromEnv := strings.ToLower(os.Getenv(EnvAdapterType))
	if adapterFromEnv == "" {
		adapterFromEnv = string(config.AdapterPGX)
	}

	adapterType, err := config.ParseAdapterType(adapterFromEnv)
	require.NoError(t, err, "unsupported adapter type from env")

	switch adapterType {
	case config.AdapterSQLDB:
		db, openErr := config.NewPostgresSQLDB(ctx, dsn)
		require.NoError(t, openErr, "error connecting to DB in test setup")
		engine, engineErr := postgresengine.NewEngineFromSQLDB(db, options...)
		require.NoError(t, engineErr, "creating the engine failed")

		return &SQLDBWrapper{tables: names, db: db, engine: engine}

	case config.AdapterSQLX:
		db, openErr := config.NewPostgresSQLX(ctx, dsn)
		require.NoError(t, openErr, "error connecting to DB in test setup")
		engine, engineErr := postgresengine.NewEngineFromSQLX(db, options...)
		require.NoError(t, engineErr, "creating the engine failed")

		return &SQLXWrapper{tables: names, db: db, engine: engine}

	default:
		pool, openErr := config.NewPGXPool(ctx, dsn)
		require.NoError(t, openErr, "error connecting to DB pool in test setup")
		engine, engineErr := postgresengine.NewEngineFromPGXPool(pool, options...)
		require.NoError(t, engineErr, "creating the engine failed")

		return &PGXPoolWrapper{tables: names, pool: pool, engine: engine}
	}
}

// CleanUp removes all rows from the tables of the wrapper.
func CleanUp(ctx context.Context, t testing.TB, wrapper Wrapper) {
	statement := fmt.Sprintf("TRUNCATE TABLE %s, %s", wrapper.TransactionsTable(), wrapper.BooksTable())
	require.NoError(t, wrapper.Exec(ctx, statement), "error cleaning up the tables")
}

// DropTables removes the tables of the wrapper and their migration records.
func DropTables(ctx context.Context, t testing.TB, wrapper Wrapper) {
	statements := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s, %s", wrapper.TransactionsTable(), wrapper.BooksTable()),
		fmt.Sprintf("DELETE FROM schema_migrations WHERE version LIKE '%s:%%'", wrapper.BooksTable()),
	}

	for _, statement := range statements {
		if err := wrapper.Exec(ctx, statement); err != nil {
			t.Logf("dropping test tables failed: %v", err)
		}
	}
}

func uniqueTables() tables {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	return tables{
		books:        "books_" + suffix,
		transactions: "borrowing_transactions_" + suffix,
	}
}
