package ir

import (
	"github.com/roach88/prodsys/internal/symtab"
)

// ConditionKind discriminates LHS condition variants.
type ConditionKind uint8

const (
	// PositiveCondition matches one working-memory element.
	PositiveCondition ConditionKind = iota + 1
	// NegativeCondition requires that no element matches.
	NegativeCondition
	// ConjunctiveNegation requires that the nested list does not match as
	// a whole.
	ConjunctiveNegation
)

// String returns the kind name.
func (k ConditionKind) String() string {
	switch k {
	case PositiveCondition:
		return "positive"
	case NegativeCondition:
		return "negative"
	case ConjunctiveNegation:
		return "ncc"
	}
	return "unknown"
}

// Field names one of the three fields of a condition or element.
type Field uint8

const (
	FieldID Field = iota
	FieldAttr
	FieldValue
)

// String returns the field name.
func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldAttr:
		return "attr"
	case FieldValue:
		return "value"
	}
	return "?"
}

// Condition is one node of a production's left-hand side.
//
// Positive and negative conditions use ID, Attr, Value and Acceptable.
// Conjunctive negations use NCC only.
type Condition struct {
	Kind ConditionKind

	ID    Test
	Attr  Test
	Value Test

	// Acceptable requires the matched element to be an acceptable
	// preference element (written with a trailing "+").
	Acceptable bool

	NCC []*Condition
}

// FieldTest returns the test on field f.
func (c *Condition) FieldTest(f Field) Test {
	switch f {
	case FieldID:
		return c.ID
	case FieldAttr:
		return c.Attr
	default:
		return c.Value
	}
}

// FieldTestPtr returns a pointer to the test on field f so callers can
// rewrite it in place.
func (c *Condition) FieldTestPtr(f Field) *Test {
	switch f {
	case FieldID:
		return &c.ID
	case FieldAttr:
		return &c.Attr
	default:
		return &c.Value
	}
}

// Fields lists the three fields in match order.
var Fields = [3]Field{FieldID, FieldAttr, FieldValue}

// Variables calls fn for every variable the condition mentions, descending
// into conjunctive negations.
func (c *Condition) Variables(fn func(*symtab.Symbol)) {
	if c.Kind == ConjunctiveNegation {
		for _, sub := range c.NCC {
			sub.Variables(fn)
		}
		return
	}
	for _, f := range Fields {
		TestVariables(c.FieldTest(f), fn)
	}
}

// EqualityVariables calls fn for the equality-tested variable of each field.
// Only positive conditions bind variables.
func (c *Condition) EqualityVariables(fn func(f Field, v *symtab.Symbol)) {
	if c.Kind == ConjunctiveNegation {
		return
	}
	for _, f := range Fields {
		if s := EqualitySymbol(c.FieldTest(f)); s.IsVariable() {
			fn(f, s)
		}
	}
}

// PositiveBindings returns every variable equality-tested by a positive
// condition in conds. When nested is true, positive conditions inside
// conjunctive negations count too.
func PositiveBindings(conds []*Condition, nested bool) map[*symtab.Symbol]bool {
	out := make(map[*symtab.Symbol]bool)
	var walk func([]*Condition)
	walk = func(list []*Condition) {
		for _, c := range list {
			switch c.Kind {
			case PositiveCondition:
				c.EqualityVariables(func(_ Field, v *symtab.Symbol) { out[v] = true })
			case ConjunctiveNegation:
				if nested {
					walk(c.NCC)
				}
			}
		}
	}
	walk(conds)
	return out
}

// ReleaseConditions gives back every symbol reference held by conds.
func ReleaseConditions(syms *symtab.Table, conds []*Condition) {
	for _, c := range conds {
		if c.Kind == ConjunctiveNegation {
			ReleaseConditions(syms, c.NCC)
			continue
		}
		for _, f := range Fields {
			ReleaseTest(syms, c.FieldTest(f))
		}
	}
}
