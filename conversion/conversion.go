// Package conversion defines the data model shared by the conversion
// pipeline: requests, results and the error taxonomy surfaced to callers.
package conversion

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies conversion failures for callers that need to map
// them to transport-level responses.
type ErrorKind string

const (
	KindWorkspace         ErrorKind = "workspace_error"
	KindStaging           ErrorKind = "staging_error"
	KindTimeout           ErrorKind = "conversion_timeout"
	KindConversionFailed  ErrorKind = "conversion_failed"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindInternal          ErrorKind = "internal_error"
)

// Error is a kind-tagged pipeline failure. Diagnostics carries captured
// converter output when there is any.
type Error struct {
	Kind        ErrorKind
	Message     string
	Diagnostics string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a kind-tagged error wrapping cause (which may be nil).
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the ErrorKind from err, returning KindInternal for
// errors that did not originate in the pipeline.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// Request describes one conversion. It is immutable once created and
// discarded after the pipeline finishes.
type Request struct {
	ID           string
	Filename     string
	Data         []byte
	SourceFormat string
	TargetFormat string
	Options      map[string]string
}

// Result is the single outcome of a conversion request. Exactly one of
// the success fields or Failure is populated.
type Result struct {
	RequestID    string
	Succeeded    bool
	OutputName   string
	OutputFormat string
	Output       []byte
	Size         int64
	Duration     time.Duration
	Failure      *Error
}

// Failed builds a failure result from err, tagging untyped errors as
// internal so diagnostics never leak past the pipeline boundary.
func Failed(requestID string, duration time.Duration, err error) *Result {
	var ce *Error
	if !errors.As(err, &ce) {
		ce = NewError(KindInternal, "unexpected failure", err)
	}
	return &Result{
		RequestID: requestID,
		Duration:  duration,
		Failure:   ce,
	}
}
