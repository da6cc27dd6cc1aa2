package gist

import (
	"errors"
	"fmt"
)

// Common errors returned by document store operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if gist.IsAuthFailure(err) {
//	    // Mark the credential invalid and route to login
//	}
var (
	// ErrAuthFailure is returned when the remote API rejects the
	// bearer credential.
	ErrAuthFailure = errors.New("credential rejected by remote API")

	// ErrNotFound is returned when the remote document is missing
	// or has been deleted.
	ErrNotFound = errors.New("remote document not found")

	// ErrMalformedDocument is returned when the document was fetched
	// but the expected payload file is absent or unparsable.
	ErrMalformedDocument = errors.New("remote document is malformed")

	// ErrTransport is returned when the request never completed
	// (network failure, cancelled context, bad response body).
	ErrTransport = errors.New("transport failure")
)

// StatusError carries the HTTP status associated with a failed document
// operation. Transport-level failures and malformed documents report
// status 500; remote rejections pass the response status through
// unchanged so callers can distinguish 401/404 from 5xx.
type StatusError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("document store: status %d: %v", e.Code, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the status code from an error chain.
// Returns 500 if the error carries no status.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 500
}

// IsAuthFailure reports whether the error indicates a rejected credential.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailure)
}

// IsNotFound reports whether the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMalformed reports whether the error indicates an unparsable document.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedDocument)
}

// statusError wraps an HTTP status into the error taxonomy.
func statusError(code int) *StatusError {
	switch code {
	case 401, 403:
		return &StatusError{Code: code, Err: ErrAuthFailure}
	case 404:
		return &StatusError{Code: code, Err: ErrNotFound}
	default:
		return &StatusError{Code: code, Err: fmt.Errorf("unexpected response status %d", code)}
	}
}

// transportError maps a transport-level failure to status 500.
func transportError(err error) *StatusError {
	return &StatusError{Code: 500, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
}
