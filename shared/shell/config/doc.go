// Package config provides the process configuration of the library service and the factory functions
// for its infrastructure: PostgreSQL connections for the three supported drivers (pgx.Pool, sql.DB, sqlx.DB)
// and the OpenTelemetry providers.
//
// This package is part of the shell (infrastructure) layer.
package config
