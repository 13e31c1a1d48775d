package interp

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/gz/pkg/token"
)

// Error is the base interface for all evaluation errors.
type Error interface {
	error
	Position() token.Position
	// Class names the error category, such as "name error" or "timeout".
	Class() string
}

// baseError provides common error functionality.
type baseError struct {
	kind string
	pos  token.Position
	msg  string
}

func (e *baseError) Position() token.Position { return e.pos }
func (e *baseError) Class() string            { return e.kind }
func (e *baseError) Error() string {
	if !e.pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	}
	return fmt.Sprintf("%s at line %d, column %d: %s", e.kind, e.pos.Line, e.pos.Column, e.msg)
}

// NameError reports a reference to an undefined name.
type NameError struct {
	baseError
	Name string
}

// NewNameError creates a new name error.
func NewNameError(pos token.Position, name string) *NameError {
	return &NameError{
		baseError: baseError{kind: "name error", pos: pos, msg: fmt.Sprintf("%q is not defined", name)},
		Name:      name,
	}
}

// TypeError reports an operation applied to values of the wrong kind.
type TypeError struct {
	baseError
}

// NewTypeErrorf creates a new type error with formatting.
func NewTypeErrorf(pos token.Position, format string, args ...any) *TypeError {
	return &TypeError{baseError: baseError{kind: "type error", pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// RuntimeError reports division by zero, out-of-range indexing, wrong arity
// and similar failures.
type RuntimeError struct {
	baseError
}

// NewRuntimeErrorf creates a new runtime error with formatting.
func NewRuntimeErrorf(pos token.Position, format string, args ...any) *RuntimeError {
	return &RuntimeError{baseError: baseError{kind: "runtime error", pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// StackOverflowError reports that the call depth limit was exceeded.
type StackOverflowError struct {
	baseError
	Depth int
}

// NewStackOverflowError creates a new stack overflow error.
func NewStackOverflowError(pos token.Position, depth int) *StackOverflowError {
	return &StackOverflowError{
		baseError: baseError{kind: "stack overflow", pos: pos, msg: fmt.Sprintf("maximum call depth %d exceeded", depth)},
		Depth:     depth,
	}
}

// TimeoutError reports that the step or wall-clock budget was exhausted.
type TimeoutError struct {
	baseError
	Steps   int64
	Elapsed time.Duration
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(pos token.Position, reason string, steps int64, elapsed time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{kind: "timeout", pos: pos, msg: reason},
		Steps:     steps,
		Elapsed:   elapsed,
	}
}
