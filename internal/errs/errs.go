// Package errs defines the closed error taxonomy shared by every numeric
// component boundary (returns, garch, flow, nfgarch, eval) and the CLI
// exit-code mapping that sits on top of it.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the closed taxonomy members. Components never raise
// across a boundary; they return a *Error with one of these kinds.
type Kind int

const (
	// KindNone is the zero value; never attached to a returned error.
	KindNone Kind = iota
	KindInvalidInput
	KindSpec
	KindConstraints
	KindNumerics
	KindTrainingDiverged
	KindTimeout
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindSpec:
		return "ERR_SPEC"
	case KindConstraints:
		return "ERR_CONSTRAINTS"
	case KindNumerics:
		return "ERR_NUMERICS"
	case KindTrainingDiverged:
		return "ERR_TRAINING_DIVERGED"
	case KindTimeout:
		return "ERR_TIMEOUT"
	case KindCancelled:
		return "ERR_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ExitCode maps a Kind to the CLI's process exit code.
func (k Kind) ExitCode() int {
	switch k {
	case KindInvalidInput:
		return 2
	case KindSpec:
		return 3
	case KindNumerics:
		return 4
	case KindConstraints:
		return 5
	case KindTrainingDiverged:
		return 6
	case KindTimeout:
		return 7
	case KindCancelled:
		return 8
	default:
		return 1
	}
}

// Error is the concrete error type returned across component boundaries.
type Error struct {
	kind Kind
	msg  string
	// At carries the offending index/timestep for numeric errors, e.g.
	// a non-finite likelihood surfaced as ERR_NUMERICS with the t it
	// occurred at.
	At    int
	cause error
}

func (e *Error) Error() string {
	if e.At >= 0 {
		return fmt.Sprintf("%s: %s (at=%d)", e.kind, e.msg, e.At)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf reports the taxonomy member of err, or KindNone if err is nil or
// has no *Error in its chain (searched with errors.As).
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindNone
}

// New builds a plain taxonomy error with no offending index.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), At: -1}
}

// Atf builds a taxonomy error carrying the offending timestep, for a
// non-finite likelihood encountered during optimization.
func Atf(kind Kind, at int, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), At: at}
}

// Wrap attaches a taxonomy kind to an underlying cause, preserving it
// (with a stack trace from github.com/pkg/errors.WithStack) for
// errors.Unwrap/errors.As.
func Wrap(cause error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), At: -1, cause: errors.WithStack(cause)}
}

var (
	ErrCancelled = New(KindCancelled, "operation cancelled")
)
