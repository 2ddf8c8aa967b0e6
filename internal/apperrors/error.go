// Package apperrors defines the error taxonomy shared by the catalog, search and
// transaction layers. Errors are chainable: a sentinel can be specialised with
// New or Msg and still match the sentinel through errors.Is, and every error
// carries the HTTP status code the presentation layer should answer with.
package apperrors

import (
	"errors"
	"net/http"
	"strings"
)

// Error extends the standard error interface with message chaining and status codes.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // fresh message, same family
	Msg(msg string) Error                  // new message wrapping the current error
	MsgErr(msg string, err ...error) Error // new message wrapping the current error and err
	Err(err ...error) Error                // attach causes, keep the message
	SetStatusCode(int) Error
	StatusCode() int
	ErrorAll() string   // message followed by every attached cause
	UnwrapAll() []error // attached causes in insertion order
}

type appError struct {
	msg           string
	base          error
	wrappedErrors []error
	statuscode    int
}

// New creates a root error with the given message.
func New(msg string) Error {
	return &appError{msg: msg, statuscode: http.StatusInternalServerError}
}

func (e *appError) Error() string {
	return e.msg
}

func (e *appError) ErrorAll() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrappedErrors {
		if err == e.base {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statuscode: e.statuscode,
	}
}

func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: append([]error{e}, e.wrappedErrors...),
		statuscode:    e.statuscode,
	}
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: append([]error{e}, errs...),
		statuscode:    e.statuscode,
	}
}

func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:           e.msg,
		base:          e,
		wrappedErrors: append([]error{e}, errs...),
		statuscode:    e.statuscode,
	}
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

// Is reports whether target is the base error or any attached cause.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 500 when err is not an
// application error.
func StatusCode(err error) int {
	var ae Error
	if errors.As(err, &ae) {
		return ae.StatusCode()
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
