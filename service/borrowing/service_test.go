package borrowing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/service/bookservice"
	"github.com/AntonStoeckl/library-borrowing-go/service/borrowing"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/fixtures"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/memengine"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/observability/testdoubles"
)

type testEnvironment struct {
	engine    *memengine.Engine
	books     *bookservice.Service
	borrowing *borrowing.Service
	now       time.Time
}

func setupTestEnvironment(t *testing.T, opts ...borrowing.Option) (context.Context, *testEnvironment) {
	t.Helper()

	env := &testEnvironment{
		engine: memengine.New(),
		now:    time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	env.books = bookservice.NewService(env.engine)
	env.borrowing = borrowing.NewService(
		env.engine,
		env.books,
		append([]borrowing.Option{
			borrowing.WithClock(func() time.Time { return env.now }),
			borrowing.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
		}, opts...)...,
	)

	ctx := context.Background()
	fixtures.GivenBooks(ctx, t, env.engine.Books(), fixtures.SampleBooks()...)

	return ctx, env
}

func borrowCommand(t *testing.T, isbn, borrower string, borrowDate time.Time) borrowing.BorrowCommand {
	t.Helper()

	command, err := borrowing.BuildBorrowCommand(isbn, borrower, borrowDate)
	require.NoError(t, err)

	return command
}

func Test_CreateBorrowingTransaction_Success(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)
	borrowDate := env.now.Add(-24 * time.Hour)

	// act
	response, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", borrowDate))

	// assert
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, response.ID)
	assert.Equal(t, "The Hobbit", response.BookTitle)
	assert.Equal(t, fixtures.TheHobbit.ISBN, response.BookISBN)
	assert.Equal(t, "Alice", response.BorrowerName)
	assert.True(t, response.BorrowDate.Equal(borrowDate))
	assert.Nil(t, response.ReturnDate)
	assert.Equal(t, library.Pending, response.Status)

	status, err := env.books.GetAvailability(ctx, fixtures.TheHobbit.ISBN)
	require.NoError(t, err)
	assert.Equal(t, library.Borrowed, status)
}

func Test_CreateBorrowingTransaction_Second_Borrow_Fails_With_InvalidState(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)

	// arrange
	_, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", env.now))
	require.NoError(t, err)

	// act
	_, err = env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Bob", env.now))

	// assert
	assert.ErrorIs(t, err, library.ErrInvalidState)
	assert.Contains(t, err.Error(), "not available for borrowing")

	pending, err := env.borrowing.ListByStatus(ctx, library.Pending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func Test_CreateBorrowingTransaction_Unknown_Book_Fails_With_NotFound(t *testing.T) {
	ctx, env := setupTestEnvironment(t)

	_, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, "978-0000000000", "Alice", env.now))

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_CreateBorrowingTransaction_With_Pending_Transaction_Fails_With_InvalidState_Without_Retry(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)

	// arrange
	first, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", env.now))
	require.NoError(t, err)
	_, err = env.books.UpdateAvailability(ctx, fixtures.TheHobbit.ISBN, library.Available)
	require.NoError(t, err)
	startedBefore, _, _ := env.engine.Stats()

	// act
	_, err = env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Bob", env.now))

	// assert
	assert.ErrorIs(t, err, library.ErrInvalidState)
	assert.NotErrorIs(t, err, library.ErrConcurrencyConflict)

	startedAfter, _, _ := env.engine.Stats()
	assert.Equal(t, 1, startedAfter-startedBefore, "a borrow that cannot succeed must not be retried")

	pending, err := env.borrowing.ListByStatus(ctx, library.Pending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
}

func Test_CreateBorrowingTransaction_Rolls_Back_When_Commit_Fails(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t, borrowing.WithRetryOptions(shell.WithMaxAttempts(1)))

	// arrange
	env.engine.FailNextCommits(1, library.ErrConcurrencyConflict)

	// act
	_, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", env.now))

	// assert
	assert.ErrorIs(t, err, library.ErrConcurrencyConflict)

	status, err := env.books.GetAvailability(ctx, fixtures.TheHobbit.ISBN)
	require.NoError(t, err)
	assert.Equal(t, library.Available, status, "The book must not stay BORROWED without a transaction")

	all, err := env.borrowing.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func Test_CreateBorrowingTransaction_Concurrent_Borrows_Only_One_Wins(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)
	const contenders = 8
	command := borrowCommand(t, fixtures.GreatGatsby.ISBN, "Borrower", env.now)

	// act
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.borrowing.CreateBorrowingTransaction(ctx, command)
		}(i)
	}
	wg.Wait()

	// assert
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, library.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	pending, err := env.borrowing.ListByStatus(ctx, library.Pending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func Test_ReturnBook_Success(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)
	borrowDate := env.now.Add(-72 * time.Hour)

	// arrange
	created, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", borrowDate))
	require.NoError(t, err)

	// act
	returned, err := env.borrowing.ReturnBook(ctx, created.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, created.ID, returned.ID)
	assert.Equal(t, library.Returned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, returned.ReturnDate.Equal(env.now))
	assert.False(t, returned.ReturnDate.Before(returned.BorrowDate))

	status, err := env.books.GetAvailability(ctx, fixtures.TheHobbit.ISBN)
	require.NoError(t, err)
	assert.Equal(t, library.Available, status)
}

func Test_ReturnBook_Clamps_Return_Date_To_Borrow_Date(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)
	futureBorrowDate := env.now.Add(48 * time.Hour)

	// arrange
	created, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", futureBorrowDate))
	require.NoError(t, err)

	// act
	returned, err := env.borrowing.ReturnBook(ctx, created.ID)

	// assert
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, returned.ReturnDate.Equal(futureBorrowDate))
}

func Test_ReturnBook_Twice_Fails_With_InvalidState_And_Keeps_Return_Date(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)

	// arrange
	created, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.MockingBird.ISBN, "Alice", env.now))
	require.NoError(t, err)

	first, err := env.borrowing.ReturnBook(ctx, created.ID)
	require.NoError(t, err)

	env.now = env.now.Add(time.Hour)

	// act
	_, err = env.borrowing.ReturnBook(ctx, created.ID)

	// assert
	assert.ErrorIs(t, err, library.ErrInvalidState)

	found, err := env.borrowing.FindByID(ctx, created.ID)
	require.NoError(t, err)

	transaction, ok := found.Get()
	require.True(t, ok)
	require.NotNil(t, transaction.ReturnDate)
	assert.True(t, transaction.ReturnDate.Equal(*first.ReturnDate))
}

func Test_ReturnBook_Unknown_Transaction_Fails_With_NotFound(t *testing.T) {
	ctx, env := setupTestEnvironment(t)

	_, err := env.borrowing.ReturnBook(ctx, uuid.New())

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_Borrow_Return_Borrow_Again(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)

	// act
	first, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", env.now))
	require.NoError(t, err)

	_, err = env.borrowing.ReturnBook(ctx, first.ID)
	require.NoError(t, err)

	second, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Bob", env.now))

	// assert
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	returned, err := env.borrowing.ListByStatus(ctx, library.Returned)
	require.NoError(t, err)
	require.Len(t, returned, 1)
	assert.Equal(t, first.ID, returned[0].ID)

	all, err := env.borrowing.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func Test_ListAvailable_Never_Includes_Book_With_Pending_Transaction(t *testing.T) {
	// setup
	ctx, env := setupTestEnvironment(t)

	// arrange
	for _, isbn := range []string{fixtures.GreatGatsby.ISBN, fixtures.NineteenEightyFour.ISBN} {
		_, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, isbn, "Carol", env.now))
		require.NoError(t, err)
	}

	// act
	available, err := env.books.ListAvailable(ctx)
	require.NoError(t, err)
	pending, err := env.borrowing.ListByStatus(ctx, library.Pending)
	require.NoError(t, err)

	// assert
	assert.Len(t, available, 3)
	for _, transaction := range pending {
		for _, book := range available {
			assert.NotEqual(t, transaction.BookISBN, book.ISBN)
		}
	}
}

func Test_FindByID_Unknown_Returns_Empty(t *testing.T) {
	ctx, env := setupTestEnvironment(t)

	found, err := env.borrowing.FindByID(ctx, uuid.New())

	require.NoError(t, err)
	assert.False(t, found.IsPresent())
}

func Test_ReturnBook_Observability(t *testing.T) {
	// setup
	metricsSpy := testdoubles.NewMetricsCollectorSpy(true)
	tracingSpy := testdoubles.NewTracingCollectorSpy(true)
	ctx, env := setupTestEnvironment(t, borrowing.WithMetrics(metricsSpy), borrowing.WithTracing(tracingSpy))

	created, err := env.borrowing.CreateBorrowingTransaction(ctx, borrowCommand(t, fixtures.TheHobbit.ISBN, "Alice", env.now))
	require.NoError(t, err)

	// act
	_, err = env.borrowing.ReturnBook(ctx, created.ID)
	require.NoError(t, err)
	_, err = env.borrowing.ReturnBook(ctx, created.ID)

	// assert
	require.ErrorIs(t, err, library.ErrInvalidState)
	assert.True(t, metricsSpy.HasDurationRecordForMetric(shell.ServiceOperationDurationMetric).
		WithLabel(shell.LogAttrOperationType, "borrowing.return").
		WithStatus(shell.StatusSuccess).
		Assert())
	assert.True(t, metricsSpy.HasCounterRecordForMetric(shell.ServiceOperationCallsMetric).
		WithLabel(shell.LogAttrOperationType, "borrowing.return").
		WithStatus(shell.StatusRejected).
		Assert())

	span, found := tracingSpy.FindSpan(shell.SpanNameServiceOperation)
	require.True(t, found)
	assert.True(t, span.Finished)
	assert.Equal(t, "borrowing.create", span.StartAttributes[shell.LogAttrOperationType])
}
