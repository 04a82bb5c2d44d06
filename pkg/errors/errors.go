// Package errors provides the structured error taxonomy for pqflow.
//
// Every failure crossing a package boundary is an *Error carrying an ErrorType,
// so callers can branch with IsType instead of matching strings.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig represents configuration errors: unknown sink prefix,
	// malformed numeric argument, invalid settings
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeSchemaMismatch represents a row whose length or value kinds
	// disagree with the schema
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeUnsupportedType represents a logical/physical type combination
	// the column encoder has no strategy for
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	// ErrorTypePipelineTerminated represents a handoff attempted after the
	// background writer stopped
	ErrorTypePipelineTerminated ErrorType = "pipeline_terminated"
	// ErrorTypeIO represents sink open, write or close failures
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeCancelled represents an operation abandoned because its
	// context ended
	ErrorTypeCancelled ErrorType = "cancelled"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error is a typed failure with an optional cause and key/value details
// naming the offending location, column or row.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]any
	Stack   []StackFrame
}

// StackFrame is one caller recorded when the error was created.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail records a detail and returns e for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// Detail looks up a detail on e or, failing that, on the errors it wraps.
func (e *Error) Detail(key string) (any, bool) {
	for cur := e; cur != nil; {
		if v, ok := cur.Details[key]; ok {
			return v, true
		}
		var next *Error
		if !errors.As(cur.Cause, &next) {
			break
		}
		cur = next
	}
	return nil, false
}

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Stack: callers(3)}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...any) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Stack: callers(3)}
}

// Wrap returns nil for a nil err. When err already carries an *Error its
// stack is reused, so the stack always points at the first failure.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	wrapped := &Error{Type: errType, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) {
		wrapped.Stack = inner.Stack
	} else {
		wrapped.Stack = callers(3)
	}
	return wrapped
}

// IsType reports whether err, or any *Error it wraps, has the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost *Error in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}

const maxStackDepth = 32

// callers records the stack above its caller's caller.
func callers(skip int) []StackFrame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]StackFrame, 0, n)
	for {
		f, more := frames.Next()
		stack = append(stack, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return stack
}
