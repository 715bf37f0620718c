package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/library/postgresengine/internal/adapters"
)

// transactionStore implements library.TransactionStore on top of the Engine.
type transactionStore struct {
	engine *Engine
}

type transactionRow struct {
	id           uuid.UUID
	bookID       uuid.UUID
	borrowerName string
	borrowDate   time.Time
	returnDate   sql.NullTime
	status       string
}

func (r *transactionRow) scanFrom(rows adapters.DBRows) error {
	return rows.Scan(&r.id, &r.bookID, &r.borrowerName, &r.borrowDate, &r.returnDate, &r.status)
}

func (r *transactionRow) toTransaction() (library.BorrowingTransaction, error) {
	status, err := library.ParseBorrowingStatus(r.status)
	if err != nil {
		return library.BorrowingTransaction{}, err
	}

	transaction := library.BorrowingTransaction{
		ID:           r.id,
		BookID:       r.bookID,
		BorrowerName: r.borrowerName,
		BorrowDate:   library.ToTimestamp(r.borrowDate),
		Status:       status,
	}

	if r.returnDate.Valid {
		returnDate := library.ToTimestamp(r.returnDate.Time)
		transaction.ReturnDate = &returnDate
	}

	return transaction, nil
}

// InsertTransaction stores a new transaction. An unknown book fails with library.ErrNotFound,
// a second PENDING transaction for the same book with library.ErrConcurrencyConflict.
func (s transactionStore) InsertTransaction(
	ctx context.Context,
	transaction library.BorrowingTransaction,
) (library.BorrowingTransaction, error) {

	_, err := s.engine.execStatement(ctx, operationInsertTransaction, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildInsertTransaction(transaction)
	})
	if err != nil {
		return library.BorrowingTransaction{}, err
	}

	return transaction, nil
}

// UpdateTransaction overwrites the mutable fields of an existing transaction, identified by its ID.
func (s transactionStore) UpdateTransaction(
	ctx context.Context,
	transaction library.BorrowingTransaction,
) (library.BorrowingTransaction, error) {

	rowsAffected, err := s.engine.execStatement(ctx, operationUpdateTransaction, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildUpdateTransaction(transaction)
	})
	if err != nil {
		return library.BorrowingTransaction{}, err
	}

	if rowsAffected == 0 {
		return library.BorrowingTransaction{}, errors.Join(library.ErrNotFound, errors.New("transaction "+transaction.ID.String()))
	}

	return transaction, nil
}

func (s transactionStore) FindTransactionByID(
	ctx context.Context,
	id uuid.UUID,
) (library.Optional[library.BorrowingTransaction], error) {

	return s.findOne(ctx, operationFindTransactionByID, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildSelectTransactionByID(id, inUnitOfWork(ctx))
	})
}

func (s transactionStore) FindTransactionsByStatus(
	ctx context.Context,
	status library.BorrowingStatus,
) ([]library.BorrowingTransaction, error) {

	return s.findMany(ctx, operationFindTransactionsByStatus, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildSelectTransactionsByStatus(status)
	})
}

func (s transactionStore) FindTransactionsByBook(
	ctx context.Context,
	bookID uuid.UUID,
) ([]library.BorrowingTransaction, error) {

	return s.findMany(ctx, operationFindTransactionsByBook, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildSelectTransactionsByBook(bookID)
	})
}

// FindLatestPendingTransactionForBook returns the PENDING transaction with the most recent borrow date.
func (s transactionStore) FindLatestPendingTransactionForBook(
	ctx context.Context,
	bookID uuid.UUID,
) (library.Optional[library.BorrowingTransaction], error) {

	return s.findOne(ctx, operationFindLatestPending, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildSelectLatestPendingTransactionForBook(bookID, inUnitOfWork(ctx))
	})
}

func (s transactionStore) FindAllTransactions(ctx context.Context) ([]library.BorrowingTransaction, error) {
	return s.findMany(ctx, operationFindAllTransactions, s.engine.queries.buildSelectAllTransactions)
}

func (s transactionStore) findOne(
	ctx context.Context,
	operation string,
	build func() (sqlQueryString, sqlArgs, error),
) (library.Optional[library.BorrowingTransaction], error) {

	transactions, err := s.findMany(ctx, operation, build)
	if err != nil {
		return library.None[library.BorrowingTransaction](), err
	}

	if len(transactions) == 0 {
		return library.None[library.BorrowingTransaction](), nil
	}

	return library.Some(transactions[0]), nil
}

func (s transactionStore) findMany(
	ctx context.Context,
	operation string,
	build func() (sqlQueryString, sqlArgs, error),
) ([]library.BorrowingTransaction, error) {

	transactions := make([]library.BorrowingTransaction, 0)

	err := s.engine.queryRows(ctx, operation, build, func(rows adapters.DBRows) error {
		var row transactionRow
		if err := row.scanFrom(rows); err != nil {
			return err
		}

		transaction, err := row.toTransaction()
		if err != nil {
			return err
		}

		transactions = append(transactions, transaction)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return transactions, nil
}
