package memengine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

type bookStore struct {
	engine *Engine
}

func (s bookStore) InsertBook(ctx context.Context, book library.Book) (library.Book, error) {
	if err := ctx.Err(); err != nil {
		return library.Book{}, err
	}

	err := s.engine.withState(func(st *state) error {
		if _, exists := st.books[book.ID]; exists {
			return errors.Join(library.ErrDuplicateKey, errors.New("book id "+book.ID.String()))
		}

		for _, existing := range st.books {
			if existing.ISBN == book.ISBN {
				return errors.Join(library.ErrDuplicateKey, errors.New("isbn "+book.ISBN))
			}
		}

		st.books[book.ID] = book
		st.bookOrder = append(st.bookOrder, book.ID)

		return nil
	})
	if err != nil {
		return library.Book{}, err
	}

	return book, nil
}

func (s bookStore) UpdateBook(ctx context.Context, book library.Book) (library.Book, error) {
	if err := ctx.Err(); err != nil {
		return library.Book{}, err
	}

	err := s.engine.withState(func(st *state) error {
		if _, exists := st.books[book.ID]; !exists {
			return notFound("book", book.ID)
		}

		for id, existing := range st.books {
			if id != book.ID && existing.ISBN == book.ISBN {
				return errors.Join(library.ErrDuplicateKey, errors.New("isbn "+book.ISBN))
			}
		}

		st.books[book.ID] = book

		return nil
	})
	if err != nil {
		return library.Book{}, err
	}

	return book, nil
}

func (s bookStore) FindBookByID(ctx context.Context, id uuid.UUID) (library.Optional[library.Book], error) {
	return s.findOne(ctx, func(book library.Book) bool { return book.ID == id })
}

func (s bookStore) FindBookByISBN(ctx context.Context, isbn string) (library.Optional[library.Book], error) {
	return s.findOne(ctx, func(book library.Book) bool { return book.ISBN == isbn })
}

func (s bookStore) FindBooksByAvailability(ctx context.Context, status library.AvailabilityStatus) ([]library.Book, error) {
	return s.findMany(ctx, func(book library.Book) bool { return book.AvailabilityStatus == status })
}

func (s bookStore) FindAllBooks(ctx context.Context) ([]library.Book, error) {
	return s.findMany(ctx, func(library.Book) bool { return true })
}

func (s bookStore) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	found, err := s.FindBookByISBN(ctx, isbn)
	if err != nil {
		return false, err
	}

	return found.IsPresent(), nil
}

func (s bookStore) findOne(ctx context.Context, match func(library.Book) bool) (library.Optional[library.Book], error) {
	books, err := s.findMany(ctx, match)
	if err != nil || len(books) == 0 {
		return library.None[library.Book](), err
	}

	return library.Some(books[0]), nil
}

func (s bookStore) findMany(ctx context.Context, match func(library.Book) bool) ([]library.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	books := make([]library.Book, 0)

	_ = s.engine.withState(func(st *state) error {
		for _, id := range st.bookOrder {
			if book := st.books[id]; match(book) {
				books = append(books, book)
			}
		}

		return nil
	})

	return books, nil
}
