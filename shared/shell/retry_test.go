package shell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell"
	"github.com/AntonStoeckl/library-borrowing-go/testutil/observability/testdoubles"
)

func Test_RetryWithExponentialBackoff_Success_NoRetries(t *testing.T) {
	// arrange
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	// act
	err := shell.RetryWithExponentialBackoff(ctx, fn)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_RetryOnConcurrencyConflict(t *testing.T) {
	// arrange
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return errors.Join(library.ErrConcurrencyConflict, errors.New("serialization failure"))
		}

		return nil
	}

	// act
	err := shell.RetryWithExponentialBackoff(ctx, fn, shell.WithBaseDelay(time.Millisecond))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func Test_RetryWithExponentialBackoff_FailsFast_OnBusinessError(t *testing.T) {
	// arrange
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return library.ErrInvalidState
	}

	// act
	err := shell.RetryWithExponentialBackoff(ctx, fn)

	// assert
	assert.ErrorIs(t, err, library.ErrInvalidState)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_ReturnsConflict_WhenAttemptsAreExhausted(t *testing.T) {
	// arrange
	ctx := context.Background()
	callCount := 0
	metricsSpy := testdoubles.NewMetricsCollectorSpy(true)

	fn := func(_ context.Context) error {
		callCount++
		return library.ErrConcurrencyConflict
	}

	// act
	err := shell.RetryWithExponentialBackoff(
		ctx,
		fn,
		shell.WithMaxAttempts(3),
		shell.WithBaseDelay(time.Millisecond),
		shell.WithJitterFactor(0),
		shell.WithRetryMetrics(metricsSpy, "borrowing.create"),
	)

	// assert
	assert.ErrorIs(t, err, library.ErrConcurrencyConflict)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 2, metricsSpy.CountCounterRecordsForMetric(shell.RetriesMetric))
	assert.True(t, metricsSpy.HasCounterRecordForMetric(shell.MaxRetriesReachedMetric).
		WithLabel(shell.LogAttrOperationType, "borrowing.create").
		WithLabel("final_error_type", shell.StatusConcurrencyConflict).
		Assert())
	assert.True(t, metricsSpy.HasDurationRecordForMetric(shell.RetryDelayMetric).
		WithLabel("attempt_number", "1").
		Assert())
}

func Test_RetryWithExponentialBackoff_StopsOnCanceledContext(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		cancel()

		return library.ErrConcurrencyConflict
	}

	// act
	err := shell.RetryWithExponentialBackoff(ctx, fn, shell.WithBaseDelay(time.Second))

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	err := shell.RetryWithExponentialBackoff(ctx, fn, shell.WithMaxAttempts(0))
	assert.ErrorIs(t, err, shell.ErrInvalidMaxAttempts)

	err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithBaseDelay(-1*time.Second))
	assert.ErrorIs(t, err, shell.ErrNegativeBaseDelay)

	err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithJitterFactor(1.5))
	assert.ErrorIs(t, err, shell.ErrInvalidJitterFactor)

	err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithRetryMetrics(nil, "borrowing.create"))
	assert.ErrorIs(t, err, shell.ErrNilMetricsCollector)

	err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithRetryMetrics(testdoubles.NewMetricsCollectorSpy(false), ""))
	assert.ErrorIs(t, err, shell.ErrEmptyOperationType)
}
