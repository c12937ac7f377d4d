package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrTimeout       = errors.New("execution timed out")
	ErrUnknownMode   = errors.New("unknown mode")
)

// CompileError means the source could not be parsed or compiled. Nothing
// was executed.
type CompileError struct {
	Message string
	Line    int
	Column  int
	// Report is the full multi-line diagnostic text, if the backend
	// produced one.
	Report string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Report != "" {
		return e.Report
	}
	if e.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
	}
	return e.Message
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// RuntimeError means the program compiled but failed while running.
type RuntimeError struct {
	Message string
	Line    int
	// Trace is the message followed by the guest call stack.
	Trace string
	Err   error
}

func (e *RuntimeError) Error() string {
	if e.Trace != "" {
		return e.Trace
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsGuestError reports whether err is a CompileError or RuntimeError, as
// opposed to a failure of the backend itself.
func IsGuestError(err error) bool {
	var ce *CompileError
	var re *RuntimeError
	return errors.As(err, &ce) || errors.As(err, &re)
}
