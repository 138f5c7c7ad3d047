// Package zerr defines the error kinds surfaced by the interpreter core.
// It sits below every other package so that memory, stack, and decoder
// failures all share one comparable type instead of ad hoc fmt.Errorf
// strings the loop would have to pattern-match on.
package zerr

import (
	"errors"
	"fmt"

	"github.com/mvisser/zgrue/zaddr"
)

// Kind classifies an interpreter failure. The loop attaches diagnostic
// context (offset, failing instruction) at the boundary; handlers only
// need to pick the right Kind.
type Kind int

const (
	_ Kind = iota
	BadStoryFile
	WriteViolation
	PCOutOfBounds
	StackOverflow
	StackUnderflow
	LocalOutOfRange
	BadVariableIndex
	MissingOperand
	UnknownOpcode
	Io
)

func (k Kind) String() string {
	switch k {
	case BadStoryFile:
		return "BadStoryFile"
	case WriteViolation:
		return "WriteViolation"
	case PCOutOfBounds:
		return "PCOutOfBounds"
	case StackOverflow:
		return "StackOverflow"
	case StackUnderflow:
		return "StackUnderflow"
	case LocalOutOfRange:
		return "LocalOutOfRange"
	case BadVariableIndex:
		return "BadVariableIndex"
	case MissingOperand:
		return "MissingOperand"
	case UnknownOpcode:
		return "UnknownOpcode"
	case Io:
		return "Io"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned across the core. Offset is the
// failing address or PC when known; it is left zero when the failure has
// no natural address (e.g. StackUnderflow on a peek) and is filled in by
// the loop boundary instead, per the spec's diagnostic-context rule.
type Error struct {
	Kind   Kind
	Offset zaddr.Offset
	// HasOffset distinguishes "offset is legitimately zero" from
	// "offset was never set" so the loop knows whether to backfill it.
	HasOffset bool
	Msg       string
	Cause     error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func WithOffset(kind Kind, offset zaddr.Offset, msg string) *Error {
	return &Error{Kind: kind, Offset: offset, HasOffset: true, Msg: msg}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Cause: cause, Msg: msg}
}

func (e *Error) Error() string {
	if e.HasOffset {
		return fmt.Sprintf("%s at 0x%04x: %s", e.Kind, e.Offset, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets callers write errors.Is(err, &zerr.Error{Kind: zerr.StackOverflow})
// by comparing only the Kind field, since a sentinel Error value carries no
// offset or message of its own.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, else zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
