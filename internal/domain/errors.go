package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. Discovery errors are absorbed by the
// resolver and degrade to "no candidates"; every other kind propagates from
// Dispatch as a single typed failure.
type ErrorKind string

const (
	KindDiscovery         ErrorKind = "discovery"
	KindWorkerUnavailable ErrorKind = "worker_unavailable"
	KindWorkerLoadTimeout ErrorKind = "worker_load_timeout"
	KindWorkerLoadFailure ErrorKind = "worker_load_failure"
	KindFetch             ErrorKind = "fetch"
	KindTranscode         ErrorKind = "transcode"
	KindSerialization     ErrorKind = "serialization"
	KindDownloadSink      ErrorKind = "download_sink"
)

// ErrDeadlineExceeded marks failures caused by an expired wait deadline. It is
// wrapped inside a kinded Error so callers can use errors.Is to tell a timeout
// apart from an execution failure of the same kind.
var ErrDeadlineExceeded = errors.New("deadline exceeded")

// Error is the typed failure shared across the pipeline.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a typed pipeline error.
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a typed pipeline error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
