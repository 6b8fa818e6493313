package extract

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError marks a stage call that exceeded its wall-clock budget.
type TimeoutError struct {
	Label string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Label, e.After)
}

// callWithTimeout runs fn on its own goroutine and waits at most timeout for
// the result. On timeout the worker is abandoned, not killed: the buffered
// channel lets it finish and get garbage collected, its result discarded.
// fn's own error propagates to the caller unwrapped.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, label string, fn func() (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}

	if timeout < time.Second {
		timeout = time.Second
	}

	ch := make(chan outcome, 1)
	go func() {
		val, err := fn()
		ch <- outcome{val: val, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case out := <-ch:
		return out.val, out.err
	case <-timer.C:
		return zero, &TimeoutError{Label: label, After: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
