// Package memengine provides an in-memory implementation of library.Engine for service and HTTP tests.
//
// It enforces the same constraints as the PostgreSQL schema: unique ISBNs, transactions referencing
// existing books, and at most one PENDING transaction per book. Units of work are serialized and
// rolled back from a snapshot when their function fails.
package memengine
