// Package pgwrapper opens the PostgreSQL engine for integration tests with the database adapter
// selected by the ADAPTER_TYPE environment variable.
//
// Tests using it are skipped unless LIBRARY_TEST_DSN points at a reachable database.
package pgwrapper
