// Package adapters provide database adapter implementations for the PostgreSQL engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB (lib/pq), and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, including serializable transactions, allowing the engine to work
// with any supported database connection type.
//
// Driver specific errors are classified into a DriverError carrying the SQLSTATE code and the
// violated constraint, so the engine can translate them without knowing the driver.
package adapters
