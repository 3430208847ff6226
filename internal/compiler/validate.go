package compiler

import (
	"fmt"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateName       = "E101" // two productions share a name
	ErrNoActions           = "E102" // production has an empty right-hand side
	ErrNegatedOnlyVariable = "E103" // RHS variable bound only under negation
	ErrArchitectureType    = "E104" // justification loaded from a rule file
	ErrNoGoalTest          = "E105" // no condition tests a goal or impasse
)

// ValidationError represents a rule-set validation error.
type ValidationError struct {
	Production string `json:"production"`
	Field      string `json:"field"`
	Message    string `json:"message"`
	Code       string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Production, e.Field, e.Message)
}

// Validate checks compiled, not yet reordered productions. It returns
// every error found, in declaration order.
func Validate(prods []*ir.Production) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(prods))

	for _, p := range prods {
		if seen[p.Name] {
			errs = append(errs, ValidationError{
				Production: p.Name,
				Field:      "name",
				Message:    "duplicate production name",
				Code:       ErrDuplicateName,
			})
		}
		seen[p.Name] = true

		if p.Type == ir.JustificationProduction {
			errs = append(errs, ValidationError{
				Production: p.Name,
				Field:      "type",
				Message:    "justifications are built at run time and cannot be loaded",
				Code:       ErrArchitectureType,
			})
		}

		if len(p.Actions) == 0 {
			errs = append(errs, ValidationError{
				Production: p.Name,
				Field:      "rhs",
				Message:    "production has no actions",
				Code:       ErrNoActions,
			})
		}

		if !testsGoal(p.Conds) {
			errs = append(errs, ValidationError{
				Production: p.Name,
				Field:      "lhs",
				Message:    "no condition is marked goal or impasse",
				Code:       ErrNoGoalTest,
			})
		}

		errs = append(errs, negatedOnly(p)...)
	}
	return errs
}

func testsGoal(conds []*ir.Condition) bool {
	for _, c := range conds {
		if c.Kind == ir.PositiveCondition && (ir.HasGoalTest(c.ID) || ir.HasImpasseTest(c.ID)) {
			return true
		}
	}
	return false
}

// negatedOnly reports RHS variables that a negated condition mentions but
// no positive condition binds. Such a variable would silently become a new
// identifier.
func negatedOnly(p *ir.Production) []ValidationError {
	positive := ir.PositiveBindings(p.Conds, false)
	negated := make(map[*symtab.Symbol]bool)
	for _, c := range p.Conds {
		if c.Kind != ir.PositiveCondition {
			c.Variables(func(v *symtab.Symbol) { negated[v] = true })
		}
	}

	var errs []ValidationError
	reported := make(map[*symtab.Symbol]bool)
	for i, a := range p.Actions {
		for _, v := range a.Values() {
			ir.ValueVariables(v, func(s *symtab.Symbol) {
				if positive[s] || !negated[s] || reported[s] {
					return
				}
				reported[s] = true
				errs = append(errs, ValidationError{
					Production: p.Name,
					Field:      fmt.Sprintf("rhs[%d]", i),
					Message:    fmt.Sprintf("variable %s is bound only inside a negated condition", s),
					Code:       ErrNegatedOnlyVariable,
				})
			})
		}
	}
	return errs
}
