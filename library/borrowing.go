package library

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BorrowingStatus is the lifecycle state of a BorrowingTransaction: PENDING -> RETURNED (terminal).
type BorrowingStatus string

const (
	Pending  BorrowingStatus = "PENDING"
	Returned BorrowingStatus = "RETURNED"
)

// ParseBorrowingStatus converts a client supplied string into a BorrowingStatus.
// Matching is case-insensitive, unknown values fail with ErrValidationFailed.
func ParseBorrowingStatus(s string) (BorrowingStatus, error) {
	switch BorrowingStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case Pending:
		return Pending, nil
	case Returned:
		return Returned, nil
	default:
		return "", errors.Join(ErrValidationFailed, errors.New("unknown borrowing status: "+s))
	}
}

func (s BorrowingStatus) String() string {
	return string(s)
}

// BorrowingTransaction records one book being borrowed by one borrower.
// ReturnDate is nil until the transaction is RETURNED.
type BorrowingTransaction struct {
	ID           uuid.UUID
	BookID       uuid.UUID
	BorrowerName string
	BorrowDate   time.Time
	ReturnDate   *time.Time
	Status       BorrowingStatus
}

// IsReturned reports whether the transaction reached its terminal state.
func (t BorrowingTransaction) IsReturned() bool {
	return t.Status == Returned
}

// MarkReturned moves the transaction into the RETURNED state and stamps the return time.
// The return time is never earlier than the borrow date.
func (t BorrowingTransaction) MarkReturned(at time.Time) (BorrowingTransaction, error) {
	if t.IsReturned() {
		return t, errors.Join(ErrInvalidState, errors.New("book has already been returned"))
	}

	returnedAt := ToTimestamp(at)
	if returnedAt.Before(t.BorrowDate) {
		returnedAt = t.BorrowDate
	}

	t.Status = Returned
	t.ReturnDate = &returnedAt

	return t, nil
}
