package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts elaboration waves in one run and enforces a
// maximum. It catches productions that keep retracting and re-asserting
// each other without reaching quiescence.
type QuotaEnforcer struct {
	maxWaves int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxWaves int) *QuotaEnforcer {
	return &QuotaEnforcer{maxWaves: maxWaves}
}

// Check increments the wave counter and validates against the limit.
func (q *QuotaEnforcer) Check(run string) error {
	q.current++
	if q.current > q.maxWaves {
		return &ElaborationsExceededError{
			Run:   run,
			Waves: q.current,
			Limit: q.maxWaves,
		}
	}
	return nil
}

// Reset resets the wave counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current wave count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxWaves returns the limit.
func (q *QuotaEnforcer) MaxWaves() int {
	return q.maxWaves
}

// ElaborationsExceededError is returned when a run exceeds its elaboration
// quota.
type ElaborationsExceededError struct {
	Run   string
	Waves int
	Limit int
}

// Error implements the error interface.
func (e *ElaborationsExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded elaboration quota: %d waves > %d limit",
		e.Run, e.Waves, e.Limit)
}

// IsElaborationsExceededError returns true if the error is an
// ElaborationsExceededError.
func IsElaborationsExceededError(err error) bool {
	var ee *ElaborationsExceededError
	return errors.As(err, &ee)
}
