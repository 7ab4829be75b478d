package internal

import (
	"errors"
	"fmt"
)

var ErrAlreadyClosed = errors.New("already closed")

func ErrRetryable(err error, f string, args ...any) error {
	return &RetryableError{msg: fmt.Sprintf(f, args...), err: err}
}

func ErrInvalidArgument(f string, args ...any) error {
	return &InvalidArgumentError{msg: fmt.Sprintf(f, args...)}
}

// RetryableError reports an IO failure that left the target untouched or
// fully replaced, so repeating the operation is safe.
type RetryableError struct {
	msg string
	err error
}

func (e *RetryableError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.err
}

type InvalidArgumentError struct {
	msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.msg
}

// IsRetryable returns true if err or anything it wraps is a RetryableError.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}
