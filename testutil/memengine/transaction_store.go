package memengine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

type transactionStore struct {
	engine *Engine
}

func (s transactionStore) InsertTransaction(
	ctx context.Context,
	transaction library.BorrowingTransaction,
) (library.BorrowingTransaction, error) {

	if err := ctx.Err(); err != nil {
		return library.BorrowingTransaction{}, err
	}

	err := s.engine.withState(func(st *state) error {
		if _, exists := st.books[transaction.BookID]; !exists {
			return notFound("book", transaction.BookID)
		}

		if _, exists := st.transactions[transaction.ID]; exists {
			return errors.Join(library.ErrDuplicateKey, errors.New("transaction id "+transaction.ID.String()))
		}

		if transaction.Status == library.Pending && hasPending(st, transaction.BookID, uuid.Nil) {
			return errors.Join(library.ErrConcurrencyConflict, errors.New("book already has a pending transaction"))
		}

		st.transactions[transaction.ID] = transaction
		st.transactionOrder = append(st.transactionOrder, transaction.ID)

		return nil
	})
	if err != nil {
		return library.BorrowingTransaction{}, err
	}

	return transaction, nil
}

func (s transactionStore) UpdateTransaction(
	ctx context.Context,
	transaction library.BorrowingTransaction,
) (library.BorrowingTransaction, error) {

	if err := ctx.Err(); err != nil {
		return library.BorrowingTransaction{}, err
	}

	err := s.engine.withState(func(st *state) error {
		if _, exists := st.transactions[transaction.ID]; !exists {
			return notFound("transaction", transaction.ID)
		}

		if transaction.Status == library.Pending && hasPending(st, transaction.BookID, transaction.ID) {
			return errors.Join(library.ErrConcurrencyConflict, errors.New("book already has a pending transaction"))
		}

		st.transactions[transaction.ID] = transaction

		return nil
	})
	if err != nil {
		return library.BorrowingTransaction{}, err
	}

	return transaction, nil
}

func (s transactionStore) FindTransactionByID(
	ctx context.Context,
	id uuid.UUID,
) (library.Optional[library.BorrowingTransaction], error) {

	transactions, err := s.findMany(ctx, func(t library.BorrowingTransaction) bool { return t.ID == id })
	if err != nil || len(transactions) == 0 {
		return library.None[library.BorrowingTransaction](), err
	}

	return library.Some(transactions[0]), nil
}

func (s transactionStore) FindTransactionsByStatus(
	ctx context.Context,
	status library.BorrowingStatus,
) ([]library.BorrowingTransaction, error) {

	return s.findMany(ctx, func(t library.BorrowingTransaction) bool { return t.Status == status })
}

func (s transactionStore) FindTransactionsByBook(
	ctx context.Context,
	bookID uuid.UUID,
) ([]library.BorrowingTransaction, error) {

	return s.findMany(ctx, func(t library.BorrowingTransaction) bool { return t.BookID == bookID })
}

func (s transactionStore) FindLatestPendingTransactionForBook(
	ctx context.Context,
	bookID uuid.UUID,
) (library.Optional[library.BorrowingTransaction], error) {

	transactions, err := s.findMany(ctx, func(t library.BorrowingTransaction) bool {
		return t.BookID == bookID && t.Status == library.Pending
	})
	if err != nil || len(transactions) == 0 {
		return library.None[library.BorrowingTransaction](), err
	}

	sortedByBorrowDateDesc(transactions)

	return library.Some(transactions[0]), nil
}

func (s transactionStore) FindAllTransactions(ctx context.Context) ([]library.BorrowingTransaction, error) {
	return s.findMany(ctx, func(library.BorrowingTransaction) bool { return true })
}

func (s transactionStore) findMany(
	ctx context.Context,
	match func(library.BorrowingTransaction) bool,
) ([]library.BorrowingTransaction, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transactions := make([]library.BorrowingTransaction, 0)

	_ = s.engine.withState(func(st *state) error {
		for _, id := range st.transactionOrder {
			if transaction := st.transactions[id]; match(transaction) {
				transactions = append(transactions, transaction)
			}
		}

		return nil
	})

	sortedByBorrowDate(transactions)

	return transactions, nil
}

func hasPending(st *state, bookID uuid.UUID, except uuid.UUID) bool {
	for id, existing := range st.transactions {
		if id != except && existing.BookID == bookID && existing.Status == library.Pending {
			return true
		}
	}

	return false
}
