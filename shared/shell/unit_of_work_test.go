package shell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/memengine"
)

func Test_RunAtomically_RetriesWholeUnitOfWork(t *testing.T) {
	// arrange
	engine := memengine.New()
	engine.FailNextCommits(2, library.ErrConcurrencyConflict)
	calls := 0

	// act
	err := shell.RunAtomically(context.Background(), engine, func(ctx context.Context) error {
		calls++
		assert.True(t, library.InUnitOfWork(ctx))
		return nil
	}, shell.WithBaseDelay(time.Millisecond))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	started, committed, rolledBack := engine.Stats()
	assert.Equal(t, 3, started)
	assert.Equal(t, 1, committed)
	assert.Equal(t, 2, rolledBack)
}

func Test_RunAtomically_JoinsOuterUnitOfWorkWithoutRetry(t *testing.T) {
	// arrange
	engine := memengine.New()
	innerCalls := 0

	// act
	err := engine.Atomically(context.Background(), func(ctx context.Context) error {
		return shell.RunAtomically(ctx, engine, func(context.Context) error {
			innerCalls++
			return library.ErrConcurrencyConflict
		})
	})

	// assert
	assert.ErrorIs(t, err, library.ErrConcurrencyConflict)
	assert.Equal(t, 1, innerCalls, "Inner function must not be retried inside the outer unit of work")

	started, _, _ := engine.Stats()
	assert.Equal(t, 1, started)
}

func Test_RunAtomically_BusinessErrorFailsFast(t *testing.T) {
	// arrange
	engine := memengine.New()
	calls := 0

	// act
	err := shell.RunAtomically(context.Background(), engine, func(context.Context) error {
		calls++
		return errors.Join(library.ErrInvalidState, errors.New("book is not available for borrowing"))
	})

	// assert
	assert.ErrorIs(t, err, library.ErrInvalidState)
	assert.Equal(t, 1, calls)
}
