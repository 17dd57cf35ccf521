package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine readable category of an error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindStorage    Kind = "storage"
	KindBroadcast  Kind = "broadcast"
	KindInternal   Kind = "internal"
)

// Error is an application error with a stable code clients can switch on.
type Error struct {
	kind    Kind
	code    string
	message string
	cause   error
}

func New(kind Kind, code, message string) *Error {
	if message == "" {
		message = code
	}
	return &Error{kind: kind, code: code, message: message}
}

// Validation builds a 400 error.
func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

// NotFound builds a 404 error.
func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

// Storage wraps a persistence failure.
func Storage(code string, cause error) *Error {
	e := New(KindStorage, code, "storage failure")
	e.cause = cause
	return e
}

// Wrap attaches a cause to the error and returns it.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Code() string {
	if e == nil {
		return ""
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// StatusCode maps the kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// From returns the *Error inside err, or an internal error carrying fallbackCode.
func From(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(KindInternal, fallbackCode, "internal error").Wrap(err)
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind() == kind
	}
	return false
}
