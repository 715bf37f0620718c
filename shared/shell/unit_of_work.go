package shell

import (
	"context"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// RunAtomically runs fn as one unit of work and retries the whole unit on concurrency conflicts.
//
// When ctx already runs inside a unit of work, fn joins it and is neither wrapped nor retried:
// a failed database transaction can only be retried as a whole, by the outermost caller.
func RunAtomically(ctx context.Context, uow library.UnitOfWork, fn RetryableFunc, options ...RetryOption) error {
	if library.InUnitOfWork(ctx) {
		return fn(ctx)
	}

	return RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return uow.Atomically(retryCtx, fn)
	}, options...)
}
