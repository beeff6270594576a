package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunWithTimeout executes fn within a transaction that must finish within
// timeout. fn observes the deadline through its context; when it is exceeded
// the transaction is rolled back.
func RunWithTimeout(ctx context.Context, target Target, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := Run(timeoutCtx, target, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		// Work that ignored the deadline still does not commit late
		return ctx.Err()
	})
	if err != nil {
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: transaction exceeded %v", ErrTransactionTimeout, timeout)
		}
		return err
	}
	return nil
}
