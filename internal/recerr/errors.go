// Package recerr defines the typed error sum surfaced by the recommendation
// core. Every error that crosses a component boundary is an *Error carrying a
// Kind; the transport layer maps kinds to HTTP status codes and never inspects
// error strings.
package recerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping and logging.
type Kind string

const (
	// KindValidation: input failed schema or bounds checks. 400.
	KindValidation Kind = "validation_error"

	// KindNotFound: the addressed entity does not exist or is not owned by
	// the requesting user. 404.
	KindNotFound Kind = "not_found"

	// KindUnauthorized: identity was not established at the edge. 401.
	KindUnauthorized Kind = "unauthorized"

	// KindStore: the store is unreachable or a constraint not attributable
	// to user input was violated. 503.
	KindStore Kind = "store_error"

	// KindTimeout: a deadline was exceeded on a store or cache call. 504.
	KindTimeout Kind = "timeout"

	// KindPipeline: unrecoverable composition failure in the pipeline. 500.
	KindPipeline Kind = "pipeline_error"

	// KindInternal: unexpected. 500.
	KindInternal Kind = "internal"
)

// Error is the concrete error type for all core failures.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates an *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an *Error wrapping err. A nil err yields a plain kinded error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validationf creates a KindValidation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err, walking the wrap chain. Context deadline
// errors without an explicit kind map to KindTimeout; everything else
// unclassified maps to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindStore:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
