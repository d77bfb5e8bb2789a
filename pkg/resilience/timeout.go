package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when an operation exceeds its own timeout
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs fn under a deadline of timeout. When fn fails because that deadline passed,
// ErrTimeout is returned; a deadline or cancellation inherited from ctx is returned unchanged.
// A non-positive timeout runs fn with ctx as is.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
