// Package errors is the coded error type shared by every layer
//
// import it as perr
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine readable class of an error, values are on the wire
type ErrorCode uint16

// Codes never get renumbered, only appended
const (
	ErrorCodeUnknown         ErrorCode = 0
	ErrorCodePanic           ErrorCode = 1
	ErrorCodeUnavailable     ErrorCode = 2
	ErrorCodeTooManyRequests ErrorCode = 3
	ErrorCodeConflict        ErrorCode = 4
	ErrorCodeUnauthorized    ErrorCode = 5
	ErrorCodeForbidden       ErrorCode = 6
	ErrorCodeInvalidArgument ErrorCode = 7
	ErrorCodeValidation      ErrorCode = 8
	ErrorCodeJSON            ErrorCode = 9
	ErrorCodeNotFound        ErrorCode = 10
	ErrorCodeDuplicateKey    ErrorCode = 11
	ErrorCodeDB              ErrorCode = 12
)

var statusByCode = map[ErrorCode]int{
	ErrorCodeUnavailable:     http.StatusServiceUnavailable,
	ErrorCodeTooManyRequests: http.StatusTooManyRequests,
	ErrorCodeConflict:        http.StatusConflict,
	ErrorCodeDuplicateKey:    http.StatusConflict,
	ErrorCodeUnauthorized:    http.StatusUnauthorized,
	ErrorCodeForbidden:       http.StatusForbidden,
	ErrorCodeInvalidArgument: http.StatusUnprocessableEntity,
	ErrorCodeValidation:      http.StatusBadRequest,
	ErrorCodeJSON:            http.StatusBadRequest,
	ErrorCodeNotFound:        http.StatusNotFound,
}

// HTTPStatusCode maps a code to its status, anything unmapped is a 500
func HTTPStatusCode(c ErrorCode) int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error carries a code, a message, an optional field and the wrapped cause
type Error struct {
	code  ErrorCode
	msg   string
	field string
	cause error
}

// Wire is what an API caller sees of an error
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Code is the error class
func (e *Error) Code() ErrorCode { return e.code }

// Field names the offending input, may be empty
func (e *Error) Field() string { return e.field }

// As finds the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrs.As(err, &e)
	return e, ok
}

// CodeOf is the code of the outermost *Error, Unknown for foreign errors
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether CodeOf(err) is code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus is the status err maps to
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// WireFrom renders err for a response body, the zero Wire for nil
func WireFrom(err error) Wire {
	switch e, ok := As(err); {
	case err == nil:
		return Wire{}
	case ok:
		return Wire{Code: e.code, Message: e.msg, Field: e.field}
	default:
		return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
	}
}

// WithField returns a copy of err naming field, foreign errors pass through
func WithField(err error, field string) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	c := *e
	c.field = field
	return &c
}

// New returns an error with code and msg
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf is New with a format
func Newf(code ErrorCode, format string, a ...any) error {
	return New(code, fmt.Sprintf(format, a...))
}

// Wrap returns an error with code and msg caused by cause
func Wrap(cause error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, cause: cause}
}

// Wrapf is Wrap with a format
func Wrapf(cause error, code ErrorCode, format string, a ...any) error {
	return Wrap(cause, code, fmt.Sprintf(format, a...))
}

// InvalidArgf reports bad input
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// JSONErrf reports a malformed JSON payload
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// PanicErrf reports a recovered panic
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// Unavailablef reports a dependency that may come back
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }
