// Package apperrors classifies domain errors so the HTTP layer can translate
// them into status codes without knowing every package's sentinels.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the error classes surfaced to API clients.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindConflict
)

// Error is a sentinel carrying a client-facing message and its Kind.
type Error struct {
	kind    Kind
	message string
}

// New constructs a classified sentinel error.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func (e *Error) Error() string {
	return e.message
}

// Kind reports the classification of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf walks the error chain and returns the first classification found.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message for err. Internal errors never
// leak their cause.
func MessageOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.message
	}
	return "An unknown error has occurred."
}

// HTTPStatus maps a Kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError tags a failure with a stable code of the form
// <package>.<operation>.<reason> while keeping the cause reachable.
type ServiceError struct {
	code string
	err  error
}

// Wrap builds a ServiceError for the given operation and reason.
func Wrap(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

// CodeOf returns the code of the first ServiceError in the chain, or "".
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.code
	}
	return ""
}
