package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/prodsys/internal/engine"
)

// Validation error codes (C100-C199)
const (
	ErrInvalidSupportMode   = "C101"
	ErrInvalidBranching     = "C102"
	ErrInvalidQuota         = "C103"
	ErrInvalidLogLevel      = "C104"
	ErrInvalidLogFormat     = "C105"
	ErrInvalidDecisionLimit = "C106"
)

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate returns every invalid field. It does not fail fast.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if _, err := engine.ParseSupportMode(c.SupportMode); err != nil {
		errs = append(errs, ValidationError{
			Field:   "support_mode",
			Message: fmt.Sprintf("unknown mode %q (want automatic, i-support or o-support)", c.SupportMode),
			Code:    ErrInvalidSupportMode,
		})
	}

	attrs := make([]string, 0, len(c.BranchingFactors))
	for attr := range c.BranchingFactors {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		if f := c.BranchingFactors[attr]; f < 1 {
			errs = append(errs, ValidationError{
				Field:   "branching_factors." + attr,
				Message: fmt.Sprintf("factor must be positive, got %d", f),
				Code:    ErrInvalidBranching,
			})
		}
	}

	if c.MaxElaborations < 1 {
		errs = append(errs, ValidationError{
			Field:   "max_elaborations",
			Message: fmt.Sprintf("must be positive, got %d", c.MaxElaborations),
			Code:    ErrInvalidQuota,
		})
	}
	if c.MaxDecisions < 1 {
		errs = append(errs, ValidationError{
			Field:   "max_decisions",
			Message: fmt.Sprintf("must be positive, got %d", c.MaxDecisions),
			Code:    ErrInvalidDecisionLimit,
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level %q", c.Log.Level),
			Code:    ErrInvalidLogLevel,
		})
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("unknown format %q (want text or json)", c.Log.Format),
			Code:    ErrInvalidLogFormat,
		})
	}

	return errs
}

func toErrors(errs []ValidationError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}
