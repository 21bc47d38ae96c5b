package dbterrors

import "fmt"

// RuntimeError is the single error type surfaced to the host tool when a
// Python model submission fails for any reason (install failure, execution
// failure, timeout, or transport failure).
type RuntimeError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// New creates a RuntimeError with a plain message.
func New(message string) *RuntimeError {
	return &RuntimeError{Message: message}
}

// Wrap creates a RuntimeError around an underlying cause.
func Wrap(message string, err error) *RuntimeError {
	return &RuntimeError{Message: message, Err: err}
}

// Errorf creates a RuntimeError with a formatted message.
func Errorf(format string, args ...any) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}
