package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while firing or retracting.
//
// Runtime errors include:
//   - Action failures: a make action produced an illegal preference
//   - Malformed tokens: the token does not fit the production
//   - Unknown retractions: the token has no instantiation in the match set
//   - Excised productions: a match was reported for an excised production
//   - Quota exceeded: elaboration did not reach quiescence in time
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Production names the production involved, if any.
	Production string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeActionFailed indicates a make action could not produce a
	// preference.
	ErrCodeActionFailed RuntimeErrorCode = "ACTION_FAILED"

	// ErrCodeMalformedToken indicates a token that does not fit its
	// production's conditions.
	ErrCodeMalformedToken RuntimeErrorCode = "MALFORMED_TOKEN"

	// ErrCodeNotInMatchSet indicates a retraction for an unknown token.
	ErrCodeNotInMatchSet RuntimeErrorCode = "NOT_IN_MATCH_SET"

	// ErrCodeExcisedProduction indicates a match for an excised production.
	ErrCodeExcisedProduction RuntimeErrorCode = "EXCISED_PRODUCTION"

	// ErrCodeQuotaExceeded indicates too many elaboration waves.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Production != "" {
		return fmt.Sprintf("%s: %s (production=%s)", e.Code, e.Message, e.Production)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func isCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsActionFailed returns true if the error is an action failure.
func IsActionFailed(err error) bool { return isCode(err, ErrCodeActionFailed) }

// IsMalformedToken returns true if the error is a malformed token error.
func IsMalformedToken(err error) bool { return isCode(err, ErrCodeMalformedToken) }

// IsNotInMatchSet returns true if the error reports an unknown retraction.
func IsNotInMatchSet(err error) bool { return isCode(err, ErrCodeNotInMatchSet) }

// IsExcised returns true if the error reports an excised production.
func IsExcised(err error) bool { return isCode(err, ErrCodeExcisedProduction) }

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and
// ElaborationsExceededError.
func IsQuotaError(err error) bool {
	if isCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var ee *ElaborationsExceededError
	return errors.As(err, &ee)
}

// NewActionError creates a RuntimeError for a failed make action.
func NewActionError(production, action, reason string) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeActionFailed,
		Message:    reason,
		Production: production,
		Details:    map[string]string{"action": action},
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(waves, maxWaves int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("elaboration exceeded max waves (%d > %d)", waves, maxWaves),
		Details: map[string]string{
			"waves":     fmt.Sprintf("%d", waves),
			"max_waves": fmt.Sprintf("%d", maxWaves),
		},
	}
}

// InvariantError reports a corrupted lifecycle. The engine panics with it;
// it is never returned.
type InvariantError struct {
	Message       string
	Instantiation uint64
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("engine invariant violated: %s (inst=%d)", e.Message, e.Instantiation)
}

func invariant(inst uint64, format string, args ...any) {
	panic(&InvariantError{Message: fmt.Sprintf(format, args...), Instantiation: inst})
}
