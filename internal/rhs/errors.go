package rhs

import (
	"errors"
	"fmt"
)

// EncodeError reports a right-hand side that cannot be resolved against
// the function library.
type EncodeError struct {
	Production string
	Function   string
	Message    string
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("production %s: function %s: %s", e.Production, e.Function, e.Message)
	}
	return fmt.Sprintf("production %s: %s", e.Production, e.Message)
}

// EvalError reports a failure while evaluating one RHS value.
type EvalError struct {
	Function string
	Message  string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("(%s): %s", e.Function, e.Message)
	}
	return e.Message
}

// IsEncodeError reports whether err is an *EncodeError.
func IsEncodeError(err error) bool {
	var e *EncodeError
	return errors.As(err, &e)
}

// IsEvalError reports whether err is an *EvalError.
func IsEvalError(err error) bool {
	var e *EvalError
	return errors.As(err, &e)
}

func evalErrorf(fn, format string, args ...any) *EvalError {
	return &EvalError{Function: fn, Message: fmt.Sprintf(format, args...)}
}
