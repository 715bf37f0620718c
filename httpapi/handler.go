package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/service/bookservice"
	"github.com/AntonStoeckl/library-borrowing-go/service/borrowing"
)

// BookService defines the book operations served over HTTP.
type BookService interface {
	CreateBook(ctx context.Context, command bookservice.CreateBookCommand) (library.Book, error)
	FindByISBN(ctx context.Context, isbn string) (library.Optional[library.Book], error)
	GetAvailability(ctx context.Context, isbn string) (library.AvailabilityStatus, error)
	ListAll(ctx context.Context) ([]library.Book, error)
	ListAvailable(ctx context.Context) ([]library.Book, error)
}

// BorrowingService defines the borrowing operations served over HTTP.
type BorrowingService interface {
	CreateBorrowingTransaction(ctx context.Context, command borrowing.BorrowCommand) (borrowing.Response, error)
	ReturnBook(ctx context.Context, transactionID uuid.UUID) (borrowing.Response, error)
	ListAll(ctx context.Context) ([]borrowing.Response, error)
	ListByStatus(ctx context.Context, status library.BorrowingStatus) ([]borrowing.Response, error)
	FindByID(ctx context.Context, transactionID uuid.UUID) (library.Optional[borrowing.Response], error)
}

// HealthCheck reports whether the process can serve requests, typically by pinging the database.
type HealthCheck func(ctx context.Context) error

// Handler serves the HTTP API.
type Handler struct {
	books            BookService
	borrowings       BorrowingService
	pathPrefix       string
	healthCheck      HealthCheck
	logger           library.ContextualLogger
	metricsCollector library.MetricsCollector
	tracingCollector library.TracingCollector
	mux              *http.ServeMux
	root             http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithPathPrefix mounts all API routes below the prefix, e.g. "/api". The health endpoint stays at the root.
func WithPathPrefix(prefix string) Option {
	return func(h *Handler) {
		h.pathPrefix = "/" + strings.Trim(prefix, "/")
		if h.pathPrefix == "/" {
			h.pathPrefix = ""
		}
	}
}

// WithHealthCheck sets the check behind GET /healthz.
func WithHealthCheck(check HealthCheck) Option {
	return func(h *Handler) {
		h.healthCheck = check
	}
}

// WithLogger sets a contextual logger for access and error logs.
func WithLogger(logger library.ContextualLogger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics sets a metrics collector for request metrics.
func WithMetrics(collector library.MetricsCollector) Option {
	return func(h *Handler) {
		h.metricsCollector = collector
	}
}

// WithTracing sets a tracing collector for request spans.
func WithTracing(collector library.TracingCollector) Option {
	return func(h *Handler) {
		h.tracingCollector = collector
	}
}

// NewHandler creates the Handler and registers all routes.
func NewHandler(books BookService, borrowings BorrowingService, opts ...Option) *Handler {
	h := &Handler{
		books:      books,
		borrowings: borrowings,
		mux:        http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(h)
	}

	for _, r := range h.routes() {
		h.mux.Handle(r.method+" "+h.pathPrefix+r.pattern, h.instrument(r.pattern, r.handler))
	}

	h.mux.HandleFunc("GET /healthz", h.health)

	h.root = h.withRequestID(h.withRecovery(h.mux))

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		if err := h.healthCheck(r.Context()); err != nil {
			h.logError(r.Context(), logMsgHealthCheckFailed, err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unhealthy"})

			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
