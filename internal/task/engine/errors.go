package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrJobTimeout is the cancellation cause when a job exceeds its timeout.
	ErrJobTimeout = errors.New("job timed out")
	// ErrJobCancelled is the cancellation cause for Runner.Cancel.
	ErrJobCancelled = errors.New("job cancelled")
)

// NoRetry marks an error as non-retryable.
//
// Actions can wrap validation errors or other permanent failures with NoRetry
// so the runner won't spend the remaining attempts on them.
//
// Example:
//
//	return nil, engine.NoRetry(fmt.Errorf("bad input: %w", err))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }

// RetryAfter asks the runner to wait before the next attempt.
//
// Retries are otherwise immediate. The wait still counts against the job's
// timeout, which bounds the whole attempt sequence.
func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	if after < 0 {
		after = 0
	}
	return retryAfterError{err: err, after: after}
}

// RetryAfterError is implemented by errors that carry an explicit retry delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (e retryAfterError) Error() string             { return fmt.Sprintf("retry-after(%s): %v", e.after, e.err) }
func (e retryAfterError) Unwrap() error             { return e.err }
func (e retryAfterError) RetryAfter() time.Duration { return e.after }

func retryDelay(err error) time.Duration {
	var ra RetryAfterError
	if err != nil && errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}
