package bank

import "context"

// RetryOnConflict runs attempt until it succeeds or fails with an error the
// predicate does not recognize as retryable. Serializable stores use it to
// re-run an admission unit of work after the engine aborts a conflicting
// interleaving; every other failure propagates on the first attempt.
func RetryOnConflict(ctx context.Context, retryable func(error) bool, attempt func(ctx context.Context) error) error {
	for {
		err := attempt(ctx)
		if err == nil || retryable == nil || !retryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}
