// Package bookservice implements the Book Service: registering books and reading or changing their availability.
//
// Mutating operations run as one unit of work, retried on concurrency conflicts. When called from within
// another unit of work, for example by the borrowing service, they join it instead.
package bookservice
