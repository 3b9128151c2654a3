package errors

import "fmt"

// Kind classifies an error for transport mapping
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// Error is a classified error with an optional cause
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error classification
func (e *Error) Kind() Kind {
	return e.kind
}

// Message returns the message without the cause, safe to show to API clients
func (e *Error) Message() string {
	return e.message
}

// Is matches sentinels by kind and message so wrapped copies compare equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind && t.message == e.message
}

// Wrap returns a copy of e carrying cause
func (e *Error) Wrap(cause error) *Error {
	return &Error{kind: e.kind, message: e.message, cause: cause}
}

func newError(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// NewValidationError represents a validation error (HTTP 400)
func NewValidationError(message string) *Error {
	return newError(KindValidation, message)
}

func NewValidationErrorf(format string, args ...interface{}) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

// NewUnauthorizedError represents an authentication error (HTTP 401)
func NewUnauthorizedError(message string) *Error {
	return newError(KindUnauthorized, message)
}

// NewNotFoundError represents a not found error (HTTP 404)
func NewNotFoundError(message string) *Error {
	return newError(KindNotFound, message)
}

func NewNotFoundErrorf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, fmt.Sprintf(format, args...))
}

// NewConflictError represents a conflict error (HTTP 409)
func NewConflictError(message string) *Error {
	return newError(KindConflict, message)
}

// NewInternalError represents an internal server error (HTTP 500)
func NewInternalError(message string) *Error {
	return newError(KindInternal, message)
}

// NewServiceUnavailableError represents a service unavailable error (HTTP 503)
func NewServiceUnavailableError(message string) *Error {
	return newError(KindServiceUnavailable, message)
}
