// Package bicerr defines the error taxonomy shared across BicycleDB's
// storage, query, and procedure-execution layers.
package bicerr

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies an error so callers can branch on failure category
// without string-matching messages.
type Kind string

const (
	// InvalidArgument means the caller supplied a malformed or out-of-range
	// request: a bad key, an unregistered model name, a malformed IndexQuery.
	InvalidArgument Kind = "invalid_argument"
	// NotFound means a procedure lookup found nothing (invoking or removing
	// a name that was never deployed). An empty record query is not an
	// error, and an unregistered model is InvalidArgument.
	NotFound Kind = "not_found"
	// DecodeError means stored or wire bytes failed to decode into the
	// expected shape (Record, IndexQuery, StructuredValue).
	DecodeError Kind = "decode_error"
	// EngineError means the underlying ordered key-value store failed a
	// read, write, or iteration.
	EngineError Kind = "engine_error"
	// CompileError means a procedure's WASM bytes failed to compile or
	// validate against the host ABI.
	CompileError Kind = "compile_error"
	// GuestTrap means a procedure instance trapped, exceeded its budget,
	// or otherwise failed during execution.
	GuestTrap Kind = "guest_trap"
	// IoError means a filesystem or transport operation failed outside
	// the engine (procedure directory scan, config file, log sink).
	IoError Kind = "io_error"
)

// bicError pairs a Kind with the wrapped cause so errors.As can recover
// both the classification and the original error chain.
type bicError struct {
	kind Kind
	err  error
}

func (e *bicError) Error() string { return e.err.Error() }
func (e *bicError) Unwrap() error { return e.err }

// New creates a Kind-tagged error from a message, formatted per fmt.Sprintf
// rules when args are given.
func New(kind Kind, msg string, args ...any) error {
	var err error
	if len(args) == 0 {
		err = errors.Newf("%s", msg) //nolint:errorlint
	} else {
		err = errors.Newf(msg, args...)
	}
	return &bicError{kind: kind, err: err}
}

// Wrap tags an existing error with kind, preserving its chain so
// errors.Is/errors.As still see the original cause.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &bicError{kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &bicError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// KindOf walks the error chain looking for a *bicError and returns its
// Kind. Returns "" if neither err nor anything in its chain was tagged.
func KindOf(err error) Kind {
	var be *bicError
	if errors.As(err, &be) {
		return be.kind
	}
	return ""
}

// Is reports whether err's chain carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
