package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind tags an AppError with the failure class it was created for.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindDeliveryFailure
	KindRateLimited
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationFailure"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindDeliveryFailure:
		return "DeliveryFailure"
	case KindRateLimited:
		return "RateLimited"
	case KindTimeout:
		return "Timeout"
	default:
		return "Internal"
	}
}

// AppError is the only error shape the error handler formats for clients.
// It is built where the failure is detected; nothing downstream inspects
// other error types to guess a status code.
type AppError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Operational reports whether the message is safe to show in production.
func (e *AppError) Operational() bool {
	return e.Kind != KindInternal
}

// Status is the envelope status: "fail" for 4xx, "error" otherwise.
func (e *AppError) Status() string {
	return StatusFor(e.StatusCode)
}

func StatusFor(code int) string {
	if code >= 400 && code < 500 {
		return "fail"
	}
	return "error"
}

// AsAppError extracts an AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// WithCause returns a copy of e carrying cause for diagnostics.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func NewValidation(message string) *AppError {
	return &AppError{Kind: KindValidation, StatusCode: http.StatusBadRequest, Message: message}
}

func NewNotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: message}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized, Message: message}
}

func NewForbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, StatusCode: http.StatusForbidden, Message: message}
}

func NewDeliveryFailure(message string, cause error) *AppError {
	return &AppError{Kind: KindDeliveryFailure, StatusCode: http.StatusInternalServerError, Message: message, Cause: cause}
}

func NewRateLimited(message string) *AppError {
	return &AppError{Kind: KindRateLimited, StatusCode: http.StatusTooManyRequests, Message: message}
}

func NewTimeout(cause error) *AppError {
	return &AppError{Kind: KindTimeout, StatusCode: http.StatusGatewayTimeout, Message: "The request took too long, please try again later", Cause: cause}
}

func NewInternal(cause error) *AppError {
	return &AppError{Kind: KindInternal, StatusCode: http.StatusInternalServerError, Message: "Something went very wrong", Cause: cause}
}

// CastError reports an identifier that is not in the store's id format.
func CastError(path, value string) *AppError {
	return NewValidation(fmt.Sprintf("Invalid %s: %s.", path, value))
}

// DuplicateField reports a unique index violation naming the offending value.
// Status stays 400 to match what API clients already handle.
func DuplicateField(value string, cause error) *AppError {
	return &AppError{
		Kind:       KindConflict,
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("Duplicate field value: %s. Please use another value", value),
		Cause:      cause,
	}
}

// ValidationFailed joins field-level messages into one client message.
func ValidationFailed(messages []string, cause error) *AppError {
	e := NewValidation("Invalid input data. " + strings.Join(messages, ". "))
	e.Cause = cause
	return e
}
