package fetch

import (
	"context"
	"errors"
	"time"
)

// retryPolicy decides whether a failed download is tried again and how long
// to wait first. Waits grow linearly: attempt × base.
type retryPolicy struct {
	maxRetries int
	base       time.Duration
}

// shouldRetry reports whether a failure on the given retry number (0 for the
// first try) is worth another try. Only the caller's context ends retries;
// a per-call client timeout is an ordinary network failure.
func (p retryPolicy) shouldRetry(ctx context.Context, err error, attempt int) bool {
	if err == nil || attempt >= p.maxRetries || ctx.Err() != nil {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.base
}

// wait blocks for the backoff of the given attempt or until ctx is done.
func (p retryPolicy) wait(ctx context.Context, attempt int) error {
	d := p.backoff(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanentError marks a failure that another try cannot fix, such as an
// oversized payload.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}
