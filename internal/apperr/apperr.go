// Package apperr defines the error taxonomy shared by all services.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP status mapping and caller handling.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindForbidden
	KindUpstream
	KindInvalidState
)

// Error carries a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound reports a missing entity.
func NotFound(format string, args ...interface{}) *Error {
	return Newf(KindNotFound, format, args...)
}

// Validation reports rejected input.
func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

// Conflict reports a lost conditional write.
func Conflict(format string, args ...interface{}) *Error {
	return Newf(KindConflict, format, args...)
}

// Forbidden reports a caller acting on a resource it does not hold.
func Forbidden(format string, args ...interface{}) *Error {
	return Newf(KindForbidden, format, args...)
}

// Upstream reports a failed or timed-out collaborator call.
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

// InvalidState reports a transition attempted from the wrong status.
func InvalidState(format string, args ...interface{}) *Error {
	return Newf(KindInvalidState, format, args...)
}

// KindOf extracts the kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code its envelope is written with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
