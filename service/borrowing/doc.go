// Package borrowing implements the Borrowing Service: lending a book to a borrower and taking it back.
//
// A transaction moves from PENDING to RETURNED and never back. Creating and returning are each one unit
// of work that writes the transaction and flips the availability of its book, so a book is BORROWED
// exactly while it has a PENDING transaction.
package borrowing
