package bookservice

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell"
)

const (
	operationCreate             = "book.create"
	operationFindByISBN         = "book.find_by_isbn"
	operationGetAvailability    = "book.get_availability"
	operationUpdateAvailability = "book.update_availability"
	operationListAll            = "book.list_all"
	operationListAvailable      = "book.list_available"
)

// Service is the Book Service.
type Service struct {
	engine        library.Engine
	observability shell.Observability
	retryOptions  []shell.RetryOption
}

// Option configures a Service.
type Option func(*Service)

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

// NewService creates a new Service on the given engine.
func NewService(engine library.Engine, opts ...Option) *Service {
	s := &Service{engine: engine}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateBook registers a new book with the given availability status.
// It fails with library.ErrDuplicateKey when a book with the ISBN is already registered.
func (s *Service) CreateBook(ctx context.Context, command CreateBookCommand) (book library.Book, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationCreate)
	defer func() { observer.Finish(ctx, err) }()

	err = s.atomically(ctx, operationCreate, func(ctx context.Context) error {
		exists, existsErr := s.engine.Books().ExistsByISBN(ctx, command.ISBN)
		if existsErr != nil {
			return existsErr
		}

		if exists {
			return errors.Join(library.ErrDuplicateKey, errors.New("a book with isbn "+command.ISBN+" already exists"))
		}

		inserted, insertErr := s.engine.Books().InsertBook(ctx, library.Book{
			ID:                 library.NewID(),
			Title:              command.Title,
			Author:             command.Author,
			ISBN:               command.ISBN,
			AvailabilityStatus: command.AvailabilityStatus,
		})
		if insertErr != nil {
			return insertErr
		}

		book = inserted

		return nil
	})
	if err != nil {
		return library.Book{}, err
	}

	return book, nil
}

// FindByISBN returns the book with the given ISBN, if any.
func (s *Service) FindByISBN(ctx context.Context, isbn string) (found library.Optional[library.Book], err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationFindByISBN)
	defer func() { observer.Finish(ctx, err) }()

	return s.engine.Books().FindBookByISBN(ctx, isbn)
}

// GetAvailability returns the availability status of the book with the given ISBN.
// It fails with library.ErrNotFound when no such book exists.
func (s *Service) GetAvailability(ctx context.Context, isbn string) (status library.AvailabilityStatus, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationGetAvailability)
	defer func() { observer.Finish(ctx, err) }()

	book, err := s.requireBook(ctx, isbn)
	if err != nil {
		return "", err
	}

	return book.AvailabilityStatus, nil
}

// UpdateAvailability sets the availability status of the book with the given ISBN and returns the updated book.
// It fails with library.ErrNotFound when no such book exists.
func (s *Service) UpdateAvailability(
	ctx context.Context,
	isbn string,
	status library.AvailabilityStatus,
) (book library.Book, err error) {

	observer, ctx := shell.StartOperation(ctx, s.observability, operationUpdateAvailability)
	defer func() { observer.Finish(ctx, err) }()

	err = s.atomically(ctx, operationUpdateAvailability, func(ctx context.Context) error {
		current, findErr := s.requireBook(ctx, isbn)
		if findErr != nil {
			return findErr
		}

		current.AvailabilityStatus = status

		updated, updateErr := s.engine.Books().UpdateBook(ctx, current)
		if updateErr != nil {
			return updateErr
		}

		book = updated

		return nil
	})
	if err != nil {
		return library.Book{}, err
	}

	return book, nil
}

// ListAll returns all books. The listing may be served from a read replica.
func (s *Service) ListAll(ctx context.Context) (books []library.Book, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationListAll)
	defer func() { observer.Finish(ctx, err) }()

	return s.engine.Books().FindAllBooks(library.WithEventualConsistency(ctx))
}

// ListAvailable returns all books with status AVAILABLE. The listing may be served from a read replica.
func (s *Service) ListAvailable(ctx context.Context) (books []library.Book, err error) {
	observer, ctx := shell.StartOperation(ctx, s.observability, operationListAvailable)
	defer func() { observer.Finish(ctx, err) }()

	return s.engine.Books().FindBooksByAvailability(library.WithEventualConsistency(ctx), library.Available)
}

func (s *Service) requireBook(ctx context.Context, isbn string) (library.Book, error) {
	found, err := s.engine.Books().FindBookByISBN(ctx, isbn)
	if err != nil {
		return library.Book{}, err
	}

	book, ok := found.Get()
	if !ok {
		return library.Book{}, errors.Join(library.ErrNotFound, errors.New("book not found with isbn: "+isbn))
	}

	return book, nil
}

func (s *Service) atomically(ctx context.Context, operationType string, fn shell.RetryableFunc) error {
	options := s.retryOptions
	if s.observability.Metrics != nil {
		options = append(append([]shell.RetryOption(nil), options...), shell.WithRetryMetrics(s.observability.Metrics, operationType))
	}

	return shell.RunAtomically(ctx, s.engine, fn, options...)
}
