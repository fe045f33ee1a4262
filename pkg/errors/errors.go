// Package errors is the typed error used from repositories up to the HTTP
// edge. A Code decides the status, whether the caller may retry, and how much
// of the message and details the client gets to see.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeContentUnavailable Code = "CONTENT_UNAVAILABLE"
	CodeInsufficientStars  Code = "INSUFFICIENT_STARS"
)

// Metadata is how a code surfaces over HTTP. With ExposeMessage the error's
// own message replaces PublicMessage, so it is only set on client errors.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

// client builds metadata for a 4xx whose message is safe to return.
func client(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, ExposeMessage: true}
}

var metadata = map[Code]Metadata{
	CodeValidation:         client(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:       client(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:          client(http.StatusForbidden, "access denied", false),
	CodeNotFound:           client(http.StatusNotFound, "resource not found", false),
	CodeConflict:           client(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:      client(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:        client(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:          client(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeContentUnavailable: client(http.StatusNotFound, "content unavailable", false),
	CodeInsufficientStars:  client(http.StatusPaymentRequired, "insufficient stars", true),

	CodeInternal:   {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency: {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
}

// MetadataFor treats unknown codes as CodeInternal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadata[code]; ok {
		return meta
	}
	return metadata[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap with a nil err is New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails sets the client-visible details (field errors, balances). They
// are dropped at the edge for codes that do not allow details.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// Error is "CODE: message". The cause is left out; Dump reports the chain.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is compares code with the outermost *Error only, so a wrap with a new code
// hides the inner one.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
