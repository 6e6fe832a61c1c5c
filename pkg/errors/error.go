// package errors contains domain errors that the pipeline layers use to add
// meaning to an error and that the retry policy uses to decide between
// requeue and escalation. This is implemented as a separate package in order
// to avoid cycle import errors.
package errors

import (
	"errors"
	"fmt"
)

// The following errors serve as domain errors that can be used by the
// different layers.
var (
	// ErrInvalidArgument is used when the provided argument is incorrect (e.g.
	// format, reserved).
	ErrInvalidArgument = fmt.Errorf("invalid")
	// ErrNotFound is used when a resource doesn't exist.
	ErrNotFound = fmt.Errorf("not found")
	// ErrContentMissing is used when a document's content record is absent
	// from the content store while a stage requires it.
	ErrContentMissing = fmt.Errorf("content record missing")
	// ErrRetryExhausted marks a message whose retry budget is spent.
	ErrRetryExhausted = fmt.Errorf("max retries exceeded")
)

// terminalError wraps an error that must not be retried: the failure is not
// transient and republishing the message would only burn attempts.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal marks err as non-retryable. A nil err returns nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// Terminalf is shorthand for Terminal(fmt.Errorf(...)).
func Terminalf(format string, args ...any) error {
	return Terminal(fmt.Errorf(format, args...))
}

// IsTerminal reports whether err (or any error it wraps) was marked with
// Terminal.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}
