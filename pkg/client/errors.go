package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies request failures.
type ErrorKind string

const (
	// KindValidation marks errors caught before any network call.
	KindValidation ErrorKind = "validation"

	// KindProtocol marks responses whose shape does not match the
	// service contract.
	KindProtocol ErrorKind = "protocol"

	// KindTransport marks network failures and non-2xx responses.
	// Status codes are not branched on further.
	KindTransport ErrorKind = "transport"
)

// Common errors returned by the client.
var (
	// ErrNoCards is returned when a submission contains no usable card names.
	ErrNoCards = errors.New("no card names provided")
)

// APIError represents a failed request against the cardfetch service.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cardfetch %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("cardfetch %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsProtocol reports whether err is a protocol (response shape) error.
func IsProtocol(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindProtocol
}

// IsTransport reports whether err is a transport (network / non-2xx) error.
func IsTransport(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindTransport
}
