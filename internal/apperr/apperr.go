// Package apperr is the typed error taxonomy of spec.md §7. Service-level
// code returns a *Error carrying a Kind; the HTTP and WebSocket ingress
// layers each have their own table mapping Kind to their wire format, so the
// taxonomy itself stays transport-agnostic.
package apperr

import "fmt"

// Kind is one of the five error kinds spec.md §7 enumerates.
type Kind string

const (
	Validation     Kind = "VALIDATION_ERROR"
	Authentication Kind = "AUTHENTICATION_ERROR"
	Forbidden      Kind = "FORBIDDEN"
	NotFound       Kind = "NOT_FOUND"
	Internal       Kind = "INTERNAL_ERROR"
)

// HTTPStatus is the status code spec.md §7 maps each Kind to.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return 400
	case Authentication:
		return 401
	case Forbidden:
		return 403
	case NotFound:
		return 404
	default:
		return 500
	}
}

// WSCode is the default WebSocket error code for each Kind. Individual call
// sites may send their own code instead (the chat handlers pick NOT_FOUND,
// INVALID_PAYLOAD or SEND_FAILED directly).
func (k Kind) WSCode() string {
	switch k {
	case Validation:
		return "INVALID_PAYLOAD"
	case Authentication:
		return "NOT_AUTHENTICATED"
	case Forbidden:
		return "SEND_FAILED"
	case NotFound:
		return "NOT_FOUND"
	default:
		return "SEND_FAILED"
	}
}

// Error is a typed service-level failure: kind + stable code + a message
// that's safe to hand straight to a client.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

func Validationf(code, format string, args ...interface{}) *Error {
	return New(Validation, code, fmt.Sprintf(format, args...))
}

func NotFoundf(code, format string, args ...interface{}) *Error {
	return New(NotFound, code, fmt.Sprintf(format, args...))
}

func Forbiddenf(code, format string, args ...interface{}) *Error {
	return New(Forbidden, code, fmt.Sprintf(format, args...))
}

func Authf(code, format string, args ...interface{}) *Error {
	return New(Authentication, code, fmt.Sprintf(format, args...))
}

// Internalf wraps an unexpected error for logging while keeping the
// client-facing message generic, per spec.md §7's propagation rule.
func Internalf(cause error, context string) *Error {
	return Wrap(Internal, "INTERNAL_ERROR", "an unexpected error occurred", fmt.Errorf("%s: %w", context, cause))
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
