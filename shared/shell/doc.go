// Package shell provides the infrastructure helpers shared by the library services:
// retry with exponential backoff on concurrency conflicts and the logging, metrics and
// tracing of service operations.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'infrastructure' layer.
package shell
