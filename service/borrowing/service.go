package borrowing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell"
)

const (
	operationCreate       = "borrowing.create"
	operationReturn       = "borrowing.return"
	operationListAll      = "borrowing.list_all"
	operationListByStatus = "borrowing.list_by_status"
	operationFindByID     = "borrowing.find_by_id"
)

// BookService defines the book operations the borrowing workflow depends on.
type BookService interface {
	GetAvailability(ctx context.Context, isbn string) (library.AvailabilityStatus, error)
	FindByISBN(ctx context.Context, isbn string) (library.Optional[library.Book], error)
	UpdateAvailability(ctx context.Context, isbn string, status library.AvailabilityStatus) (library.Book, error)
}

// Service is the Borrowing Service.
type Service struct {
	engine        library.Engine
	books         BookService
	clock         func() time.Time
	observability shell.Observability
	retryOptions  []shell.RetryOption
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the source of the current time used as the return date.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger sets a contextual logger for operation logs.
func WithLogger(logger shell.ContextualLogger) Option {
	return func(s *Service) {
		s.observability.Logger = logger
	}
}

// WithMetrics sets a metrics collector for operation and retry metrics.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(s *Service) {
		s.observability.Metrics = collector
	}
}

// WithTracing sets a tracing collector for operation spans.
func WithTracing(collector shell.TracingCollector) Option {
	return func(s *Service) {
		s.observability.Tracing = collector
	}
}

// WithRetryOptions sets a custom retry configuration for mutating operations.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(s *Service) {
		s.retryOptions = opts
	}
}

// NewService creates a new Service. The book service must run on the same engine,
// so that its writes join the units of work of this service.
func NewService(engine library.Engine, books BookService, opts ...Option) *Service {
	s := &Service{
		engine: engine,
		books:  books,
		clock:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateBorrowingTransaction lends the book to the borrower and marks the book as BORROWED.
//
// It fails with library.ErrNotFound when no book has the ISBN and with library.ErrInvalidState when the
// book is not AVAILABLE or still has a PENDING transaction. The transaction and the book are written in one unit of work. A concurrent
// request that borrowed the same book first makes this one fail with library.ErrInvalidState once retried.
func (s *Service) CreateBorrowingTransaction(ctx context.Context, command BorrowCommand) (response Response, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationCreate)
	defer func() { observer.Finish(ctx, err) }()

	err = s.atomically(ctx, operationCreate, func(ctx context.Context) error {
		availability, availabilityErr := s.books.GetAvailability(ctx, command.ISBN)
		if availabilityErr != nil {
			return availabilityErr
		}

		if availability != library.Available {
			return errors.Join(
				library.ErrInvalidState,
				errors.New("book with isbn "+command.ISBN+" is not available for borrowing"),
			)
		}

		found, findErr := s.books.FindByISBN(ctx, command.ISBN)
		if findErr != nil {
			return findErr
		}

		book, ok := found.Get()
		if !ok {
			return errors.Join(library.ErrNotFound, errors.New("book with isbn "+command.ISBN+" not found"))
		}

		// the availability flag can be reset while a transaction is still open
		pending, pendingErr := s.engine.Transactions().FindLatestPendingTransactionForBook(ctx, book.ID)
		if pendingErr != nil {
			return pendingErr
		}

		if pending.IsPresent() {
			return errors.Join(
				library.ErrInvalidState,
				errors.New("book with isbn "+command.ISBN+" is not available for borrowing"),
			)
		}

		transaction, insertErr := s.engine.Transactions().InsertTransaction(ctx, library.BorrowingTransaction{
			ID:           library.NewID(),
			BookID:       book.ID,
			BorrowerName: command.BorrowerName,
			BorrowDate:   command.BorrowDate,
			Status:       library.Pending,
		})
		if insertErr != nil {
			return insertErr
		}

		borrowedBook, updateErr := s.books.UpdateAvailability(ctx, book.ISBN, library.Borrowed)
		if updateErr != nil {
			return updateErr
		}

		response = NewResponse(transaction, borrowedBook)

		return nil
	})
	if err != nil {
		return Response{}, err
	}

	return response, nil
}

// ReturnBook marks the transaction as RETURNED at the current time and the book as AVAILABLE.
//
// It fails with library.ErrNotFound when no transaction has the ID and with library.ErrInvalidState
// when it has already been returned, leaving the return date untouched.
func (s *Service) ReturnBook(ctx context.Context, transactionID uuid.UUID) (response Response, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationReturn)
	defer func() { observer.Finish(ctx, err) }()

	err = s.atomically(ctx, operationReturn, func(ctx context.Context) error {
		found, findErr := s.engine.Transactions().FindTransactionByID(ctx, transactionID)
		if findErr != nil {
			return findErr
		}

		transaction, ok := found.Get()
		if !ok {
			return errors.Join(
				library.ErrNotFound,
				errors.New("borrowing transaction with id "+transactionID.String()+" not found"),
			)
		}

		returned, returnErr := transaction.MarkReturned(s.clock())
		if returnErr != nil {
			return returnErr
		}

		book, bookErr := s.requireBook(ctx, transaction.BookID)
		if bookErr != nil {
			return bookErr
		}

		availableBook, updateErr := s.books.UpdateAvailability(ctx, book.ISBN, library.Available)
		if updateErr != nil {
			return updateErr
		}

		saved, saveErr := s.engine.Transactions().UpdateTransaction(ctx, returned)
		if saveErr != nil {
			return saveErr
		}

		response = NewResponse(saved, availableBook)

		return nil
	})
	if err != nil {
		return Response{}, err
	}

	return response, nil
}

// ListAll returns all transactions. The listing may be served from a read replica.
func (s *Service) ListAll(ctx context.Context) (responses []Response, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationListAll)
	defer func() { observer.Finish(ctx, err) }()

	ctx = library.WithEventualConsistency(ctx)

	transactions, err := s.engine.Transactions().FindAllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	return s.toResponses(ctx, transactions)
}

// ListByStatus returns all transactions with the given status. The listing may be served from a read replica.
func (s *Service) ListByStatus(ctx context.Context, status library.BorrowingStatus) (responses []Response, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationListByStatus)
	defer func() { observer.Finish(ctx, err) }()

	ctx = library.WithEventualConsistency(ctx)

	transactions, err := s.engine.Transactions().FindTransactionsByStatus(ctx, status)
	if err != nil {
		return nil, err
	}

	return s.toResponses(ctx, transactions)
}

// FindByID returns the transaction with the given ID, if any.
func (s *Service) FindByID(ctx context.Context, transactionID uuid.UUID) (found library.Optional[Response], err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationFindByID)
	defer func() { observer.Finish(ctx, err) }()

	transactionFound, err := s.engine.Transactions().FindTransactionByID(ctx, transactionID)
	if err != nil {
		return library.None[Response](), err
	}

	transaction, ok := transactionFound.Get()
	if !ok {
		return library.None[Response](), nil
	}

	book, err := s.requireBook(ctx, transaction.BookID)
	if err != nil {
		return library.None[Response](), err
	}

	return library.Some(NewResponse(transaction, book)), nil
}

func (s *Service) requireBook(ctx context.Context, bookID uuid.UUID) (library.Book, error) {
	found, err := s.engine.Books().FindBookByID(ctx, bookID)
	if err != nil {
		return library.Book{}, err
	}

	book, ok := found.Get()
	if !ok {
		return library.Book{}, errors.Join(library.ErrNotFound, errors.New("book with id "+bookID.String()+" not found"))
	}

	return book, nil
}

// toResponses joins the transactions with their books, loading all books with one query.
func (s *Service) toResponses(ctx context.Context, transactions []library.BorrowingTransaction) ([]Response, error) {
	responses := make([]Response, 0, len(transactions))
	if len(transactions) == 0 {
		return responses, nil
	}

	books, err := s.engine.Books().FindAllBooks(ctx)
	if err != nil {
		return nil, err
	}

	booksByID := make(map[uuid.UUID]library.Book, len(books))
	for _, book := range books {
		booksByID[book.ID] = book
	}

	for _, transaction := range transactions {
		book, ok := booksByID[transaction.BookID]
		if !ok {
			// replica lag: the book row may not have arrived yet
			if book, err = s.requireBook(library.WithStrongConsistency(ctx), transaction.BookID); err != nil {
				return nil, err
			}
		}

		responses = append(responses, NewResponse(transaction, book))
	}

	return responses, nil
}

func (s *Service) atomically(ctx context.Context, operationType string, fn shell.RetryableFunc) error {
	options := s.retryOptions
	if s.observability.Metrics != nil {
		options = append(append([]shell.RetryOption(nil), options...), shell.WithRetryMetrics(s.observability.Metrics, operationType))
	}

	return shell.RunAtomically(ctx, s.engine, fn, options...)
}
