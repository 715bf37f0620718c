// Package postgresengine provides a PostgreSQL implementation of the library stores and unit of work.
//
// This package implements the BookStore, TransactionStore and UnitOfWork contracts using PostgreSQL
// as the storage backend, supporting multiple database adapters (pgx, sql.DB, sqlx) with serializable
// transactions and driver independent error translation.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Units of work as serializable transactions carried in the context, nested calls join the outer one
//   - Row locks (SELECT ... FOR UPDATE) for lookups inside a unit of work
//   - Translation of unique, foreign key and serialization failures into library errors
//   - Embedded schema migrations
//   - Optional read replica for eventually consistent reads
//   - Logging, metrics and tracing through dependency-free interfaces
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := postgresengine.NewEngineFromPGXPool(db)
//	_ = engine.Migrate(ctx)
//
//	// With observability
//	engine, _ := postgresengine.NewEngineFromPGXPool(
//		db,
//		postgresengine.WithContextualLogger(slog.Default()),
//		postgresengine.WithMetrics(metricsCollector),
//		postgresengine.WithTracing(tracingCollector),
//	)
//
//	err := engine.Atomically(ctx, func(ctx context.Context) error {
//		_, err := engine.Books().InsertBook(ctx, book)
//		return err
//	})
package postgresengine
