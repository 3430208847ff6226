package reorder

import (
	"errors"
	"fmt"
	"strings"
)

// FailureCode categorizes reorder failures.
type FailureCode string

const (
	// CodeUnconnected means some condition's identifier can never be bound.
	CodeUnconnected FailureCode = "UNCONNECTED_CONDITIONS"

	// CodeUngrounded means some root variable is not tested as a goal or
	// impasse.
	CodeUngrounded FailureCode = "UNGROUNDED_ROOTS"

	// CodeNoRootGoal means no root variable exists to reach a goal from.
	CodeNoRootGoal FailureCode = "NO_ROOT_GOAL"

	// CodeUnorderableRHS means no legal order exists for the actions.
	CodeUnorderableRHS FailureCode = "UNORDERABLE_RHS"

	// CodeUnboundNegatedRelational means a negated relational test refers
	// to a variable no positive condition binds.
	CodeUnboundNegatedRelational FailureCode = "UNBOUND_NEGATED_RELATIONAL"
)

// Failure is a compile-time reorder failure. A production that fails to
// reorder is never registered.
type Failure struct {
	Code       FailureCode
	Production string
	Message    string

	// Conditions and Actions render the offending rule parts.
	Conditions []string
	Actions    []string

	// Symbols names the offending variables.
	Symbols []string
}

// Error implements the error interface.
func (e *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: production %s: %s", e.Code, e.Production, e.Message)
	if len(e.Symbols) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Symbols, " "))
	}
	for _, c := range e.Conditions {
		b.WriteString("\n    ")
		b.WriteString(c)
	}
	for _, a := range e.Actions {
		b.WriteString("\n    ")
		b.WriteString(a)
	}
	return b.String()
}

// CodeOf extracts the failure code from err.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) (FailureCode, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code, true
	}
	return "", false
}

// IsUnconnected reports whether err is an unconnected-conditions failure.
func IsUnconnected(err error) bool { return hasCode(err, CodeUnconnected) }

// IsUngrounded reports whether err is an ungrounded-roots failure.
func IsUngrounded(err error) bool { return hasCode(err, CodeUngrounded) }

// IsNoRootGoal reports whether err is a missing-root failure.
func IsNoRootGoal(err error) bool { return hasCode(err, CodeNoRootGoal) }

// IsUnorderableRHS reports whether err is an RHS ordering failure.
func IsUnorderableRHS(err error) bool { return hasCode(err, CodeUnorderableRHS) }

// IsUnboundNegatedRelational reports whether err is a negated-relational
// binding failure.
func IsUnboundNegatedRelational(err error) bool {
	return hasCode(err, CodeUnboundNegatedRelational)
}

func hasCode(err error, code FailureCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
