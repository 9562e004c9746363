// Package errorsx defines the analyzer's typed error taxonomy. Every error
// kind carries enough context to log usefully and to decide, per
// SPEC_FULL.md §1.2, whether the failure degrades a request or is fatal to
// the process.
package errorsx

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindParse      Kind = "parse"
	KindCursor     Kind = "cursor"
	KindResolution Kind = "resolution"
	KindHelper     Kind = "helper"
	KindStage      Kind = "stage"
	KindTransport  Kind = "transport"
	KindRequest    Kind = "request"
)

// Kinded is implemented by every error type in this taxonomy, letting a
// caller branch on Kind() without a type switch over every concrete type.
type Kinded interface {
	Kind() Kind
}

// LSPCode maps an error's Kind to a JSON-RPC error code for a dispatch
// failure response, following the JSON-RPC convention that -32000..-32099
// is reserved for application-defined errors (spec range distinct from the
// standard -32600..-32603 parse/invalid-request/method/internal codes).
func LSPCode(err error) int {
	k, ok := err.(Kinded)
	if !ok {
		return -32603
	}
	switch k.Kind() {
	case KindRequest:
		return -32602
	case KindParse, KindCursor, KindResolution:
		return -32001
	case KindHelper:
		return -32002
	default:
		return -32603
	}
}

// ParseError reports that tree-sitter could not produce a usable tree, or
// produced one with ERROR nodes covering the region of interest.
type ParseError struct {
	URI        string
	ByteOffset int
	Underlying error
	Timestamp  time.Time
}

func NewParseError(uri string, offset int, err error) *ParseError {
	return &ParseError{URI: uri, ByteOffset: offset, Underlying: err, Timestamp: time.Now()}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s at byte %d: %v", e.URI, e.ByteOffset, e.Underlying)
}

func (e *ParseError) Unwrap() error { return e.Underlying }

func (e *ParseError) Kind() Kind { return KindParse }

// CursorError reports that the requested cursor position is not on an
// identifier node.
type CursorError struct {
	URI      string
	Line     int
	Char     int
	Timestamp time.Time
}

func NewCursorError(uri string, line, char int) *CursorError {
	return &CursorError{URI: uri, Line: line, Char: char, Timestamp: time.Now()}
}

func (e *CursorError) Error() string {
	return fmt.Sprintf("no identifier at %s:%d:%d", e.URI, e.Line, e.Char)
}

func (e *CursorError) Kind() Kind { return KindCursor }

// ResolutionError reports that an identifier could not be resolved to a
// declaring Symbol.
type ResolutionError struct {
	URI       string
	Name      string
	Timestamp time.Time
}

func NewResolutionError(uri, name string) *ResolutionError {
	return &ResolutionError{URI: uri, Name: name, Timestamp: time.Now()}
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unresolved symbol %q in %s", e.Name, e.URI)
}

func (e *ResolutionError) Kind() Kind { return KindResolution }

// HelperError reports a semantic helper bridge failure or timeout. Always
// recoverable: callers fall back to the syntactic result.
type HelperError struct {
	Op         string
	TimedOut   bool
	Underlying error
	Timestamp  time.Time
}

func NewHelperError(op string, timedOut bool, err error) *HelperError {
	return &HelperError{Op: op, TimedOut: timedOut, Underlying: err, Timestamp: time.Now()}
}

func (e *HelperError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("semantic helper %s timed out", e.Op)
	}
	return fmt.Sprintf("semantic helper %s failed: %v", e.Op, e.Underlying)
}

func (e *HelperError) Unwrap() error { return e.Underlying }

func (e *HelperError) Kind() Kind { return KindHelper }

// StageError wraps a panic recovered from an analysis stage, per the
// fault-boundary-per-stage discipline in spec.md §5/§7.
type StageError struct {
	Stage     string
	Recovered any
	Timestamp time.Time
}

func NewStageError(stage string, recovered any) *StageError {
	return &StageError{Stage: stage, Recovered: recovered, Timestamp: time.Now()}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Recovered)
}

func (e *StageError) Kind() Kind { return KindStage }

// TransportError reports a malformed JSON-RPC frame or transport I/O
// failure. This is the only error kind that terminates the process.
type TransportError struct {
	Underlying error
	Timestamp  time.Time
}

func NewTransportError(err error) *TransportError {
	return &TransportError{Underlying: err, Timestamp: time.Now()}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Underlying)
}

func (e *TransportError) Unwrap() error { return e.Underlying }

func (e *TransportError) Kind() Kind { return KindTransport }

// RequestError reports a well-formed transport frame carrying an invalid
// LSP request (unknown method, malformed params).
type RequestError struct {
	Method    string
	Reason    string
	Timestamp time.Time
}

func NewRequestError(method, reason string) *RequestError {
	return &RequestError{Method: method, Reason: reason, Timestamp: time.Now()}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request %s: %s", e.Method, e.Reason)
}

func (e *RequestError) Kind() Kind { return KindRequest }

// MultiError aggregates errors from more than one degraded stage.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error { return e.Errors }
