package borrowing

import (
	"errors"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// BorrowCommand represents the intent to lend the book with the given ISBN to a borrower.
type BorrowCommand struct {
	ISBN         string
	BorrowerName string
	BorrowDate   time.Time
}

// BuildBorrowCommand trims and validates the input. A blank ISBN or borrower name, or a zero borrow date,
// fails with library.ErrValidationFailed. The borrow date is not checked against the current time.
func BuildBorrowCommand(isbn, borrowerName string, borrowDate time.Time) (BorrowCommand, error) {
	command := BorrowCommand{
		ISBN:         strings.TrimSpace(isbn),
		BorrowerName: strings.TrimSpace(borrowerName),
		BorrowDate:   library.ToTimestamp(borrowDate),
	}

	var problems []error

	if command.ISBN == "" {
		problems = append(problems, errors.New("isbn is required"))
	}

	if command.BorrowerName == "" {
		problems = append(problems, errors.New("borrower name is required"))
	}

	if borrowDate.IsZero() {
		problems = append(problems, errors.New("borrow date is required"))
	}

	if len(problems) > 0 {
		return BorrowCommand{}, errors.Join(append([]error{library.ErrValidationFailed}, problems...)...)
	}

	return command, nil
}
