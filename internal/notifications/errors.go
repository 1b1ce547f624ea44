package notifications

import (
	"errors"
	"time"
)

// Gateway errors.
var (
	ErrNoChannels   = errors.New("no notification channels configured")
	ErrNoSender     = errors.New("no sender for channel type")
	ErrInvalidKind  = errors.New("invalid notice kind")
	ErrItemNotFound = errors.New("queue item not found")
)

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}

// isRetryable checks if an error is retryable. Errors that do not say
// otherwise are retried.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}

// retryDelay returns the delay a transport asked to wait before the next
// attempt, zero if it asked for none.
func retryDelay(err error) time.Duration {
	type delayed interface {
		RetryDelay() time.Duration
	}
	var d delayed
	if errors.As(err, &d) {
		return d.RetryDelay()
	}
	return 0
}
