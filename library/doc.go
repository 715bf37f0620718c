// Package library provides the core types and abstractions of the library borrowing backend.
//
// This package defines the entities (Book, BorrowingTransaction), their status enums,
// the store interfaces implemented by the persistence engines, the unit of work contract,
// and the common error definitions shared by all layers.
//
// Key types:
//   - Book: A registered book, identified by its ISBN
//   - BorrowingTransaction: One borrow of one book by one borrower
//   - Optional: Zero-or-one result of a lookup
//   - Stores / UnitOfWork: Persistence contracts
//
// Common usage pattern:
//
//	err := uow.Atomically(ctx, func(ctx context.Context) error {
//		found, err := stores.Books().FindBookByISBN(ctx, isbn)
//		if err != nil {
//			return err
//		}
//
//		book, ok := found.Get()
//		if !ok {
//			return library.ErrNotFound
//		}
//
//		book.AvailabilityStatus = library.Borrowed
//		_, err = stores.Books().UpdateBook(ctx, book)
//
//		return err
//	})
package library
