// Package errors carries typed application errors from the domain to the HTTP edge. The
// code decides the status, whether a retry can succeed and what the client may see.
package errors

import (
	stdErrors "errors"
	"net/http"
	"time"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeContention        Code = "CONTENTION"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// Only business rejections expose details; internal failures never leak their shape.
var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, false, "validation failed", true},
	CodeNotFound:          {http.StatusNotFound, false, "resource not found", true},
	CodeConflict:          {http.StatusConflict, false, "conflict detected", true},
	CodeInsufficientStock: {http.StatusConflict, false, "insufficient stock", true},
	CodeCapacityExceeded:  {http.StatusConflict, false, "production capacity exceeded", true},
	CodeContention:        {http.StatusServiceUnavailable, true, "reservation contention, retry the request", true},
	CodeIdempotency:       {http.StatusConflict, false, "idempotency key reused", true},
	CodeRateLimit:         {http.StatusTooManyRequests, true, "rate limit exceeded", false},
	CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code       Code
	message    string
	details    any
	retryAfter time.Duration
	cause      error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
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

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// RetryAfter is the wait the server advertises before a resubmission can succeed. Zero
// means the caller did not set one.
func (e *Error) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.retryAfter
}

func (e *Error) WithRetryAfter(d time.Duration) *Error {
	if e != nil && d > 0 {
		e.retryAfter = d
	}
	return e
}

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

// Retryable reports whether the caller may safely resubmit the same request.
func (e *Error) Retryable() bool {
	return MetadataFor(e.Code()).Retryable
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost typed error in err's chain carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
