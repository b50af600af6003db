// Package apperrors provides chained application errors that carry an HTTP status
// code. Errors derived from a sentinel with New, Msg or Err keep the sentinel in
// their chain, so callers classify them with errors.Is and the HTTP layer maps
// them with StatusCode.
package apperrors

import (
	"strings"
)

// Error is an error with a status code and an optional list of wrapped causes.
// All methods return a new Error and never mutate the receiver.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // new error with this one as its base
	Msg(msg string) Error                  // replaces the message, wraps the receiver
	Msgf(format string, args ...any) Error // formatted Msg
	MsgErr(msg string, err ...error) Error // Msg plus extra causes
	Err(err ...error) Error                // keeps the message, attaches causes
	SetExpandError(bool) Error             // ErrorAll includes causes when set
	SetStatusCode(int) Error
	StatusCode() int
	ErrorAll() string
	Causes() []error
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field  string
	Reason string
}

func (fe FieldError) Error() string {
	if fe.Field == "" {
		return fe.Reason
	}
	return fe.Field + ": " + fe.Reason
}

// FieldErrors collects FieldError values for a single request.
type FieldErrors []FieldError

func (fes FieldErrors) Error() string {
	parts := make([]string, 0, len(fes))
	for _, fe := range fes {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// First returns the first field error, or the zero value when empty.
func (fes FieldErrors) First() FieldError {
	if len(fes) == 0 {
		return FieldError{}
	}
	return fes[0]
}
