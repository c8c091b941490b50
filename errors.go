package equeue

import (
	"errors"
	"fmt"

	"github.com/chazlever/equeue/internal/engine"
)

// Code is one of the five error categories the queue reports. Rather
// than negative-int sentinels, Go callers match on Code via
// errors.As(err, &equeue.Error{}) or the IsCode helper.
type Code string

const (
	CodeNoMem    Code = "no memory"
	CodeNoEnt    Code = "no such event"
	CodeInval    Code = "invalid parameter"
	CodeTimedOut Code = "timed out"
	CodeBreak    Code = "break"
)

// Error is the queue's structured error type: an operation name, a
// taxonomy code, a message, and (for wrapped causes) an inner error.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("equeue: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("equeue: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// Sentinel errors for errors.Is comparisons against the public API's
// return values (e.g. errors.Is(err, equeue.ErrTimedOut)).
var (
	ErrNoMem    = &Error{Code: CodeNoMem, Msg: string(CodeNoMem)}
	ErrNoEnt    = &Error{Code: CodeNoEnt, Msg: string(CodeNoEnt)}
	ErrInval    = &Error{Code: CodeInval, Msg: string(CodeInval)}
	ErrTimedOut = &Error{Code: CodeTimedOut, Msg: string(CodeTimedOut)}
	ErrBreak    = &Error{Code: CodeBreak, Msg: string(CodeBreak)}
)

func newError(op string, code Code) *Error {
	return &Error{Op: op, Code: code, Msg: string(code)}
}

// wrapEngineErr maps a sentinel returned from internal/engine onto the
// public taxonomy, tagging it with the operation that produced it.
func wrapEngineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrNoMem):
		return newError(op, CodeNoMem)
	case errors.Is(err, engine.ErrInval):
		return newError(op, CodeInval)
	case errors.Is(err, engine.ErrTimedOut):
		return newError(op, CodeTimedOut)
	case errors.Is(err, engine.ErrBreak):
		return newError(op, CodeBreak)
	default:
		return &Error{Op: op, Code: CodeInval, Msg: err.Error(), Inner: err}
	}
}

// IsCode reports whether err is an *Error (at any wrap depth) carrying
// the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
