package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/service/borrowing"
)

// localDateTimeLayout is accepted for borrow dates without a zone offset; such dates are taken as UTC.
const localDateTimeLayout = "2006-01-02T15:04:05.999999999"

type bookRequest struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	ISBN               string `json:"isbn"`
	AvailabilityStatus string `json:"availabilityStatus"`
}

type bookResponse struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Author             string `json:"author"`
	ISBN               string `json:"isbn"`
	AvailabilityStatus string `json:"availabilityStatus"`
}

type borrowingRequest struct {
	ISBN         string `json:"isbn"`
	BorrowerName string `json:"borrowerName"`
	BorrowDate   string `json:"borrowDate"`
}

type borrowingResponse struct {
	ID           string  `json:"id"`
	BookTitle    string  `json:"bookTitle"`
	BookISBN     string  `json:"bookIsbn"`
	BorrowerName string  `json:"borrowerName"`
	BorrowDate   string  `json:"borrowDate"`
	ReturnDate   *string `json:"returnDate"`
	Status       string  `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toBookResponse(book library.Book) bookResponse {
	return bookResponse{
		ID:                 book.ID.String(),
		Title:              book.Title,
		Author:             book.Author,
		ISBN:               book.ISBN,
		AvailabilityStatus: book.AvailabilityStatus.String(),
	}
}

func toBookResponses(books []library.Book) []bookResponse {
	responses := make([]bookResponse, 0, len(books))
	for _, book := range books {
		responses = append(responses, toBookResponse(book))
	}

	return responses
}

func toBorrowingResponse(r borrowing.Response) borrowingResponse {
	response := borrowingResponse{
		ID:           r.ID.String(),
		BookTitle:    r.BookTitle,
		BookISBN:     r.BookISBN,
		BorrowerName: r.BorrowerName,
		BorrowDate:   formatTime(r.BorrowDate),
		Status:       r.Status.String(),
	}

	if r.ReturnDate != nil {
		returnDate := formatTime(*r.ReturnDate)
		response.ReturnDate = &returnDate
	}

	return response
}

func toBorrowingResponses(responses []borrowing.Response) []borrowingResponse {
	converted := make([]borrowingResponse, 0, len(responses))
	for _, r := range responses {
		converted = append(converted, toBorrowingResponse(r))
	}

	return converted
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseBorrowDate accepts RFC 3339 timestamps and local date-times without an offset.
// An empty value yields the zero time, which the borrow command rejects as missing.
func parseBorrowDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}

	t, err := time.ParseInLocation(localDateTimeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, errors.Join(library.ErrValidationFailed, errors.New("borrow date is not a valid date-time: "+value))
	}

	return t, nil
}
