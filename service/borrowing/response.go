package borrowing

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// Response combines a borrowing transaction with the title and ISBN of its book.
type Response struct {
	ID           uuid.UUID
	BookTitle    string
	BookISBN     string
	BorrowerName string
	BorrowDate   time.Time
	ReturnDate   *time.Time
	Status       library.BorrowingStatus
}

// NewResponse builds the Response for a transaction and its book.
func NewResponse(transaction library.BorrowingTransaction, book library.Book) Response {
	return Response{
		ID:           transaction.ID,
		BookTitle:    book.Title,
		BookISBN:     book.ISBN,
		BorrowerName: transaction.BorrowerName,
		BorrowDate:   transaction.BorrowDate,
		ReturnDate:   transaction.ReturnDate,
		Status:       transaction.Status,
	}
}
