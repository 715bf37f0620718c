package postgresengine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/library/postgresengine/internal/adapters"
)

// bookStore implements library.BookStore on top of the Engine.
type bookStore struct {
	engine *Engine
}

type bookRow struct {
	id                 uuid.UUID
	title              string
	author             string
	isbn               string
	availabilityStatus string
}

func (r *bookRow) scanFrom(rows adapters.DBRows) error {
	return rows.Scan(&r.id, &r.title, &r.author, &r.isbn, &r.availabilityStatus)
}

func (r *bookRow) toBook() (library.Book, error) {
	status, err := library.ParseAvailabilityStatus(r.availabilityStatus)
	if err != nil {
		return library.Book{}, err
	}

	return library.Book{
		ID:                 r.id,
		Title:              r.title,
		Author:             r.author,
		ISBN:               r.isbn,
		AvailabilityStatus: status,
	}, nil
}

// InsertBook stores a new book. A book with an ISBN that is already registered fails with library.ErrDuplicateKey.
func (s bookStore) InsertBook(ctx context.Context, book library.Book) (library.Book, error) {
	_, err := s.engine.execStatement(ctx, operationInsertBook, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildInsertBook(book)
	})
	if err != nil {
		return library.Book{}, err
	}

	return book, nil
}

// UpdateBook overwrites all fields of an existing book, identified by its ID.
func (s bookStore) UpdateBook(ctx context.Context, book library.Book) (library.Book, error) {
	rowsAffected, err := s.engine.execStatement(ctx, operationUpdateBook, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildUpdateBook(book)
	})
	if err != nil {
		return library.Book{}, err
	}

	if rowsAffected == 0 {
		return library.Book{}, errors.Join(library.ErrNotFound, errors.New("book "+book.ID.String()))
	}

	return book, nil
}

// FindBookByID looks up a book by ID. Inside a unit of work the row is locked for update.
func (s bookStore) FindBookByID(ctx context.Context, id uuid.UUID) (library.Optional[library.Book], error) {
	return s.findOne(ctx, operationFindBookByID, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildSelectBookByID(id, inUnitOfWork(ctx))
	})
}

// FindBookByISBN looks up a book by ISBN. Inside a unit of work the row is locked for update.
func (s bookStore) FindBookByISBN(ctx context.Context, isbn string) (library.Optional[library.Book], error) {
	return s.findOne(ctx, operationFindBookByISBN, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildSelectBookByISBN(isbn, inUnitOfWork(ctx))
	})
}

func (s bookStore) FindBooksByAvailability(ctx context.Context, status library.AvailabilityStatus) ([]library.Book, error) {
	return s.findMany(ctx, operationFindBooksByAvailability, func() (sqlQueryString, sqlArgs, error) {
		return s.engine.queries.buildSelectBooksByAvailability(status)
	})
}

func (s bookStore) FindAllBooks(ctx context.Context) ([]library.Book, error) {
	return s.findMany(ctx, operationFindAllBooks, s.engine.queries.buildSelectAllBooks)
}

// ExistsByISBN reports whether a book with the given ISBN is registered.
func (s bookStore) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	var count int64

	err := s.engine.queryRows(
		ctx,
		operationExistsByISBN,
		func() (sqlQueryString, sqlArgs, error) {
			return s.engine.queries.buildCountBooksByISBN(isbn)
		},
		func(rows adapters.DBRows) error {
			return rows.Scan(&count)
		},
	)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (s bookStore) findOne(
	ctx context.Context,
	operation string,
	build func() (sqlQueryString, sqlArgs, error),
) (library.Optional[library.Book], error) {

	books, err := s.findMany(ctx, operation, build)
	if err != nil {
		return library.None[library.Book](), err
	}

	if len(books) == 0 {
		return library.None[library.Book](), nil
	}

	return library.Some(books[0]), nil
}

func (s bookStore) findMany(
	ctx context.Context,
	operation string,
	build func() (sqlQueryString, sqlArgs, error),
) ([]library.Book, error) {

	books := make([]library.Book, 0)

	err := s.engine.queryRows(ctx, operation, build, func(rows adapters.DBRows) error {
		var row bookRow
		if err := row.scanFrom(rows); err != nil {
			return err
		}

		book, err := row.toBook()
		if err != nil {
			return err
		}

		books = append(books, book)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return books, nil
}
