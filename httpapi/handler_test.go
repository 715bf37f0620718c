package httpapi_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-borrowing-go/httpapi"
	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/service/bookservice"
	"github.com/AntonStoeckl/library-borrowing-go/service/borrowing"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/fixtures"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/memengine"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/observability/testdoubles"
)

type bookJSON struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Author             string `json:"author"`
	ISBN               string `json:"isbn"`
	AvailabilityStatus string `json:"availabilityStatus"`
}

type borrowingJSON struct {
	ID           string  `json:"id"`
	BookTitle    string  `json:"bookTitle"`
	BookISBN     string  `json:"bookIsbn"`
	BorrowerName string  `json:"borrowerName"`
	BorrowDate   string  `json:"borrowDate"`
	ReturnDate   *string `json:"returnDate"`
	Status       string  `json:"status"`
}

type errorJSON struct {
	Error string `json:"error"`
}

type testServer struct {
	engine  *memengine.Engine
	handler http.Handler
}

func newTestServer(t *testing.T, opts ...httpapi.Option) *testServer {
	t.Helper()

	engine := memengine.New()
	books := bookservice.NewService(engine)
	borrowings := borrowing.NewService(
		engine,
		books,
		borrowing.WithClock(func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }),
		borrowing.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	)

	return &testServer{
		engine:  engine,
		handler: httpapi.NewHandler(books, borrowings, opts...),
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)

	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(recorder.Body.Bytes(), &v), recorder.Body.String())

	return v
}

const hobbitJSON = `{"title":"The Hobbit","author":"J.R.R. Tolkien","isbn":"978-0547928241","availabilityStatus":"AVAILABLE"}`

func Test_Hobbit_Borrow_Return_Borrow_Scenario(t *testing.T) {
	server := newTestServer(t)

	// create book
	created := server.do(t, http.MethodPost, "/books", hobbitJSON)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	book := decode[bookJSON](t, created)
	assert.Equal(t, "The Hobbit", book.Title)
	assert.Equal(t, "AVAILABLE", book.AvailabilityStatus)
	assert.NotEmpty(t, book.ID)

	// borrow
	borrowed := server.do(t, http.MethodPost, "/borrowings",
		`{"isbn":"978-0547928241","borrowerName":"Alice","borrowDate":"2024-03-01T10:00:00"}`)
	require.Equal(t, http.StatusCreated, borrowed.Code, borrowed.Body.String())

	transaction := decode[borrowingJSON](t, borrowed)
	assert.Equal(t, "The Hobbit", transaction.BookTitle)
	assert.Equal(t, "978-0547928241", transaction.BookISBN)
	assert.Equal(t, "Alice", transaction.BorrowerName)
	assert.Equal(t, "2024-03-01T10:00:00Z", transaction.BorrowDate)
	assert.Nil(t, transaction.ReturnDate)
	assert.Equal(t, "PENDING", transaction.Status)

	availability := server.do(t, http.MethodGet, "/books/978-0547928241/availability", "")
	require.Equal(t, http.StatusOK, availability.Code)
	assert.Equal(t, "BORROWED", availability.Body.String())
	assert.Contains(t, availability.Header().Get("Content-Type"), "text/plain")

	// return
	returned := server.do(t, http.MethodPut, "/borrowings/"+transaction.ID+"/return", "")
	require.Equal(t, http.StatusOK, returned.Code, returned.Body.String())

	returnedTransaction := decode[borrowingJSON](t, returned)
	assert.Equal(t, "RETURNED", returnedTransaction.Status)
	require.NotNil(t, returnedTransaction.ReturnDate)
	assert.Equal(t, "2024-03-10T12:00:00Z", *returnedTransaction.ReturnDate)

	availability = server.do(t, http.MethodGet, "/books/978-0547928241/availability", "")
	assert.Equal(t, "AVAILABLE", availability.Body.String())

	// borrow again
	again := server.do(t, http.MethodPost, "/borrowings",
		`{"isbn":"978-0547928241","borrowerName":"Bob","borrowDate":"2024-03-11T09:00:00Z"}`)
	require.Equal(t, http.StatusCreated, again.Code, again.Body.String())
}

func Test_CreateBook_Duplicate_ISBN_Returns_400(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/books", hobbitJSON).Code)

	response := server.do(t, http.MethodPost, "/books", hobbitJSON)

	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Contains(t, decode[errorJSON](t, response).Error, "duplicate key")
}

func Test_CreateBook_Validation_Returns_400(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "blank title", body: `{"title":" ","author":"A","isbn":"1","availabilityStatus":"AVAILABLE"}`},
		{name: "missing status", body: `{"title":"T","author":"A","isbn":"1"}`},
		{name: "unknown status", body: `{"title":"T","author":"A","isbn":"1","availabilityStatus":"LOST"}`},
		{name: "malformed json", body: `{"title":`},
		{name: "empty body", body: ``},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(t)

			response := server.do(t, http.MethodPost, "/books", tc.body)

			assert.Equal(t, http.StatusBadRequest, response.Code)
			assert.Equal(t, "application/json", response.Header().Get("Content-Type"))
		})
	}
}

func Test_GetBook(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/books", hobbitJSON).Code)

	found := server.do(t, http.MethodGet, "/books/978-0547928241", "")
	missing := server.do(t, http.MethodGet, "/books/978-0000000000", "")
	missingAvailability := server.do(t, http.MethodGet, "/books/978-0000000000/availability", "")

	require.Equal(t, http.StatusOK, found.Code)
	assert.Equal(t, "J.R.R. Tolkien", decode[bookJSON](t, found).Author)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusNotFound, missingAvailability.Code)
}

func Test_ListBooks_And_Available(t *testing.T) {
	server := newTestServer(t)
	fixtures.GivenBooks(context.Background(), t, server.engine.Books(), fixtures.SampleBooks()...)

	borrowed := server.do(t, http.MethodPost, "/borrowings",
		`{"isbn":"978-0451524935","borrowerName":"Dave","borrowDate":"2024-03-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, borrowed.Code)

	all := server.do(t, http.MethodGet, "/books", "")
	available := server.do(t, http.MethodGet, "/books/available", "")

	require.Equal(t, http.StatusOK, all.Code)
	require.Equal(t, http.StatusOK, available.Code)
	assert.Len(t, decode[[]bookJSON](t, all), 5)

	availableBooks := decode[[]bookJSON](t, available)
	assert.Len(t, availableBooks, 4)
	for _, book := range availableBooks {
		assert.NotEqual(t, "978-0451524935", book.ISBN)
	}
}

func Test_ListBooks_Empty_Returns_Empty_Array(t *testing.T) {
	server := newTestServer(t)

	response := server.do(t, http.MethodGet, "/books", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, "[]", response.Body.String())
}

func Test_CreateBorrowing_Failures_Return_400(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/books", hobbitJSON).Code)
	require.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/borrowings",
		`{"isbn":"978-0547928241","borrowerName":"Alice","borrowDate":"2024-03-01T10:00:00Z"}`).Code)

	testCases := []struct {
		name string
		body string
	}{
		{name: "unavailable book", body: `{"isbn":"978-0547928241","borrowerName":"Bob","borrowDate":"2024-03-01T10:00:00Z"}`},
		{name: "unknown book", body: `{"isbn":"978-0000000000","borrowerName":"Bob","borrowDate":"2024-03-01T10:00:00Z"}`},
		{name: "blank borrower", body: `{"isbn":"978-0547928241","borrowerName":"","borrowDate":"2024-03-01T10:00:00Z"}`},
		{name: "missing borrow date", body: `{"isbn":"978-0547928241","borrowerName":"Bob"}`},
		{name: "malformed borrow date", body: `{"isbn":"978-0547928241","borrowerName":"Bob","borrowDate":"yesterday"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			response := server.do(t, http.MethodPost, "/borrowings", tc.body)

			assert.Equal(t, http.StatusBadRequest, response.Code, response.Body.String())
			assert.NotEmpty(t, decode[errorJSON](t, response).Error)
		})
	}
}

func Test_ReturnBook_Failures_Return_400(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/books", hobbitJSON).Code)

	borrowed := server.do(t, http.MethodPost, "/borrowings",
		`{"isbn":"978-0547928241","borrowerName":"Alice","borrowDate":"2024-03-01T10:00:00Z"}`)
	transaction := decode[borrowingJSON](t, borrowed)
	require.Equal(t, http.StatusOK, server.do(t, http.MethodPut, "/borrowings/"+transaction.ID+"/return", "").Code)

	alreadyReturned := server.do(t, http.MethodPut, "/borrowings/"+transaction.ID+"/return", "")
	unknown := server.do(t, http.MethodPut, "/borrowings/"+uuid.NewString()+"/return", "")
	malformed := server.do(t, http.MethodPut, "/borrowings/42/return", "")

	assert.Equal(t, http.StatusBadRequest, alreadyReturned.Code)
	assert.Contains(t, decode[errorJSON](t, alreadyReturned).Error, "already been returned")
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
}

func Test_GetBorrowing_And_List_By_Status(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/books", hobbitJSON).Code)

	transaction := decode[borrowingJSON](t, server.do(t, http.MethodPost, "/borrowings",
		`{"isbn":"978-0547928241","borrowerName":"Alice","borrowDate":"2024-03-01T10:00:00Z"}`))

	found := server.do(t, http.MethodGet, "/borrowings/"+transaction.ID, "")
	missing := server.do(t, http.MethodGet, "/borrowings/"+uuid.NewString(), "")
	pending := server.do(t, http.MethodGet, "/borrowings/status/pending", "")
	returned := server.do(t, http.MethodGet, "/borrowings/status/RETURNED", "")
	invalid := server.do(t, http.MethodGet, "/borrowings/status/LOST", "")
	all := server.do(t, http.MethodGet, "/borrowings", "")

	require.Equal(t, http.StatusOK, found.Code)
	assert.Equal(t, transaction.ID, decode[borrowingJSON](t, found).ID)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Len(t, decode[[]borrowingJSON](t, pending), 1)
	assert.Empty(t, decode[[]borrowingJSON](t, returned))
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
	assert.Len(t, decode[[]borrowingJSON](t, all), 1)
}

func Test_Exhausted_Concurrency_Conflict_Returns_409(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/books", hobbitJSON).Code)
	server.engine.FailNextCommits(100, library.ErrConcurrencyConflict)

	response := server.do(t, http.MethodPost, "/borrowings",
		`{"isbn":"978-0547928241","borrowerName":"Alice","borrowDate":"2024-03-01T10:00:00Z"}`)

	assert.Equal(t, http.StatusConflict, response.Code)
}

func Test_Unknown_Route_And_Method(t *testing.T) {
	server := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, server.do(t, http.MethodGet, "/authors", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, server.do(t, http.MethodDelete, "/books", "").Code)
}

func Test_Path_Prefix(t *testing.T) {
	server := newTestServer(t, httpapi.WithPathPrefix("/api/"))

	assert.Equal(t, http.StatusCreated, server.do(t, http.MethodPost, "/api/books", hobbitJSON).Code)
	assert.Equal(t, http.StatusOK, server.do(t, http.MethodGet, "/api/books/978-0547928241", "").Code)
	assert.Equal(t, http.StatusNotFound, server.do(t, http.MethodGet, "/books", "").Code)
	assert.Equal(t, http.StatusOK, server.do(t, http.MethodGet, "/healthz", "").Code)
}

func Test_Health_Check(t *testing.T) {
	healthy := newTestServer(t)
	unhealthy := newTestServer(t, httpapi.WithHealthCheck(func(context.Context) error {
		return errors.New("database unreachable")
	}))

	assert.Equal(t, http.StatusOK, healthy.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, unhealthy.do(t, http.MethodGet, "/healthz", "").Code)
}

func Test_Request_ID_And_Access_Log(t *testing.T) {
	logSpy := testdoubles.NewLogHandlerSpy(false)
	metricsSpy := testdoubles.NewMetricsCollectorSpy(true)
	tracingSpy := testdoubles.NewTracingCollectorSpy(true)
	server := newTestServer(t,
		httpapi.WithLogger(slog.New(logSpy)),
		httpapi.WithMetrics(metricsSpy),
		httpapi.WithTracing(tracingSpy),
	)

	request := httptest.NewRequest(http.MethodGet, "/books/978-0000000000", nil)
	request.Header.Set(httpapi.HeaderRequestID, "req-123")
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, request)

	generated := server.do(t, http.MethodGet, "/books", "")

	assert.Equal(t, "req-123", recorder.Header().Get(httpapi.HeaderRequestID))
	assert.NotEmpty(t, generated.Header().Get(httpapi.HeaderRequestID))
	assert.True(t, logSpy.HasInfoLogWithMessage("http request handled").
		WithAttribute("request_id", "req-123").
		WithAttribute("route", "/books/{isbn}").
		WithDurationMS().
		Assert())
	assert.True(t, metricsSpy.HasCounterRecordForMetric("library_http_requests_total").
		WithLabel("route", "/books/{isbn}").
		WithLabel("status_code", "404").
		Assert())

	span, found := tracingSpy.FindSpan("libraryhttp.request")
	require.True(t, found)
	assert.Equal(t, "rejected", span.Status)
}

type panickingBooks struct {
	httpapi.BookService
}

func (panickingBooks) ListAll(context.Context) ([]library.Book, error) {
	panic("boom")
}

func Test_Panic_Is_Recovered(t *testing.T) {
	engine := memengine.New()
	books := bookservice.NewService(engine)
	handler := httpapi.NewHandler(panickingBooks{BookService: books}, borrowing.NewService(engine, books))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/books", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "internal server error", decode[errorJSON](t, recorder).Error)
}
