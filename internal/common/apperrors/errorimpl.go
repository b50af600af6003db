package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

type appError struct {
	msg         string
	base        error
	causes      []error
	statusCode  int
	expandError bool
}

// New creates a root error with the given message.
func New(msg string) Error {
	return &appError{msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by every attached cause when the error
// was marked with SetExpandError(true). Otherwise it equals Error().
func (e *appError) ErrorAll() string {
	if !e.expandError || len(e.causes) == 0 {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, c := range e.causes {
		if c == nil || c == e.base || c.Error() == e.msg {
			continue
		}
		b.WriteString("; ")
		b.WriteString(c.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) Causes() []error {
	return e.causes
}

func (e *appError) derive(msg string, causes []error) *appError {
	return &appError{
		msg:         msg,
		base:        e,
		causes:      causes,
		statusCode:  e.statusCode,
		expandError: e.expandError,
	}
}

func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg, append([]error{e}, e.causes...))
}

func (e *appError) Msgf(format string, args ...any) Error {
	return e.Msg(fmt.Sprintf(format, args...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, append([]error{e}, errs...))
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statusCode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statusCode
}

// Is reports whether target is the base of e or any attached cause.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, c := range e.causes {
		if c == e {
			continue
		}
		if errors.Is(c, target) {
			return true
		}
	}
	return false
}
