package library

import (
	"context"

	"github.com/google/uuid"
)

// BookStore persists books. Lookups report "not found" as an empty Optional, not as an error.
type BookStore interface {
	InsertBook(ctx context.Context, book Book) (Book, error)
	UpdateBook(ctx context.Context, book Book) (Book, error)
	FindBookByID(ctx context.Context, id uuid.UUID) (Optional[Book], error)
	FindBookByISBN(ctx context.Context, isbn string) (Optional[Book], error)
	FindBooksByAvailability(ctx context.Context, status AvailabilityStatus) ([]Book, error)
	FindAllBooks(ctx context.Context) ([]Book, error)
	ExistsByISBN(ctx context.Context, isbn string) (bool, error)
}

// TransactionStore persists borrowing transactions, with the same not-found convention as BookStore.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, transaction BorrowingTransaction) (BorrowingTransaction, error)
	UpdateTransaction(ctx context.Context, transaction BorrowingTransaction) (BorrowingTransaction, error)
	FindTransactionByID(ctx context.Context, id uuid.UUID) (Optional[BorrowingTransaction], error)
	FindTransactionsByStatus(ctx context.Context, status BorrowingStatus) ([]BorrowingTransaction, error)
	FindTransactionsByBook(ctx context.Context, bookID uuid.UUID) ([]BorrowingTransaction, error)
	FindLatestPendingTransactionForBook(ctx context.Context, bookID uuid.UUID) (Optional[BorrowingTransaction], error)
	FindAllTransactions(ctx context.Context) ([]BorrowingTransaction, error)
}

// Stores gives access to both stores of one persistence engine.
type Stores interface {
	Books() BookStore
	Transactions() TransactionStore
}

// UnitOfWork runs a function as one atomic scope against the backing store.
//
// The scope travels inside the context handed to fn: store calls made with that context
// take part in the scope, and a nested Atomically call joins the outer scope instead of
// opening a new one. If fn returns an error, every write made within the scope is rolled back.
type UnitOfWork interface {
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine is a persistence engine providing both stores and units of work.
type Engine interface {
	Stores
	UnitOfWork
}

// unitOfWorkMarker is the context key flagging a context as running inside a unit of work.
type unitOfWorkMarker struct{}

// MarkUnitOfWork returns a context flagged as running inside a unit of work.
// Engines call it in Atomically before handing the context to the function.
func MarkUnitOfWork(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitOfWorkMarker{}, true)
}

// InUnitOfWork reports whether ctx runs inside a unit of work.
// Callers use it to avoid retrying inside a scope that only the outermost caller may retry.
func InUnitOfWork(ctx context.Context) bool {
	marked, _ := ctx.Value(unitOfWorkMarker{}).(bool)
	return marked
}
