package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrInvalidNumber      = errors.New("invalid number")
	ErrDuplicateProvider  = errors.New("duplicate provider")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrReportNotWritable  = errors.New("report not writable")
	ErrMalformedReport    = errors.New("malformed report")
	ErrBrowserUnavailable = errors.New("browser unavailable")
)

// InputError reports a target that cannot be normalized into a phone number.
// It is raised before any provider is invoked.
type InputError struct {
	Input  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid number %q", e.Input)
	}
	return fmt.Sprintf("invalid number %q: %s", e.Input, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidNumber
}

// NewInputError builds an InputError for the given raw input.
func NewInputError(input, reason string) *InputError {
	return &InputError{Input: input, Reason: reason}
}

// IOError wraps a failure to persist or read a report file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err carries an InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// IsIOError reports whether err carries an IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
