package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adamwoolhether/httpflow/client/serialize"
	"github.com/adamwoolhether/httpflow/client/transport"
)

var (
	// ErrCancelled is the terminal error of a request cancelled by its caller.
	ErrCancelled = transport.ErrCancelled
	// ErrSessionInvalidated is wrapped by the TransportError of requests
	// issued after Manager.Invalidate.
	ErrSessionInvalidated = transport.ErrSessionInvalidated
	// ErrValidationFailed is the sentinel error wrapped by [ValidationError].
	ErrValidationFailed = errors.New("validation failed")
)

// SerializationError reports a response body that could not be decoded.
type SerializationError = serialize.Error

// TransportError wraps a failure reported by the transport: connection,
// TLS, timeout, or task creation.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Reason identifies which validation failed.
type Reason int

const (
	ReasonStatusCode Reason = iota + 1
	ReasonContentType
	ReasonCustom
)

func (r Reason) String() string {
	switch r {
	case ReasonStatusCode:
		return "unacceptable status code"
	case ReasonContentType:
		return "unacceptable content type"
	case ReasonCustom:
		return "custom validation"
	default:
		return "unknown"
	}
}

// ValidationError is recorded when a completed response fails a validation.
type ValidationError struct {
	Reason      Reason
	StatusCode  int
	ContentType string
	Acceptable  []string
	Err         error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s", ErrValidationFailed, e.Reason)

	switch e.Reason {
	case ReasonStatusCode:
		fmt.Fprintf(&b, " %d", e.StatusCode)
	case ReasonContentType:
		fmt.Fprintf(&b, " %q, acceptable %v", e.ContentType, e.Acceptable)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidationFailed}
	}
	return []error{ErrValidationFailed, e.Err}
}

// FileSystemError is recorded when a finished download cannot be moved
// to its destination.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// ProgrammingError is the panic value for violated internal invariants,
// such as registering two delegates for one task.
type ProgrammingError struct {
	Msg string
}

func (e *ProgrammingError) Error() string {
	return "httpflow: programming error: " + e.Msg
}
