package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// SampleBook is a well-known book with a stable ISBN.
type SampleBook struct {
	Title  string
	Author string
	ISBN   string
}

var (
	GreatGatsby        = SampleBook{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "978-0743273565"}
	MockingBird        = SampleBook{Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "978-0446310789"}
	NineteenEightyFour = SampleBook{Title: "1984", Author: "George Orwell", ISBN: "978-0451524935"}
	PrideAndPrejudice  = SampleBook{Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: "978-0141439518"}
	TheHobbit          = SampleBook{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "978-0547928241"}
)

// SampleBooks returns all sample books in a stable order.
func SampleBooks() []SampleBook {
	return []SampleBook{GreatGatsby, MockingBird, NineteenEightyFour, PrideAndPrejudice, TheHobbit}
}

// Book returns the sample as a library.Book with a fresh ID and the given status.
func (b SampleBook) Book(status library.AvailabilityStatus) library.Book {
	return library.Book{
		ID:                 library.NewID(),
		Title:              b.Title,
		Author:             b.Author,
		ISBN:               b.ISBN,
		AvailabilityStatus: status,
	}
}

// GivenBooks stores the samples as AVAILABLE books and returns them.
func GivenBooks(ctx context.Context, t *testing.T, store library.BookStore, samples ...SampleBook) []library.Book {
	t.Helper()

	books := make([]library.Book, 0, len(samples))
	for _, sample := range samples {
		book, err := store.InsertBook(ctx, sample.Book(library.Available))
		require.NoError(t, err, "Inserting fixture book %s", sample.ISBN)
		books = append(books, book)
	}

	return books
}
