package ir

import (
	"github.com/roach88/prodsys/internal/symtab"
)

// Test is a sealed interface over the field tests a condition can apply to
// one of its identifier, attribute or value fields. A nil Test is blank and
// matches anything.
type Test interface {
	isTest()
}

// EqualityTest requires the field to equal Sym. When Sym is a variable the
// test binds it on first use.
type EqualityTest struct {
	Sym *symtab.Symbol
}

// RelationalTest requires field Rel Referent to hold.
type RelationalTest struct {
	Rel      Relation
	Referent *symtab.Symbol
}

// DisjunctionTest requires the field to equal one of Syms (all constants).
type DisjunctionTest struct {
	Syms []*symtab.Symbol
}

// ConjunctiveTest requires every sub-test to hold.
type ConjunctiveTest struct {
	Tests []Test
}

// GoalTest requires the identifier field to be a goal (written "state").
type GoalTest struct{}

// ImpasseTest requires the identifier field to be an impasse.
type ImpasseTest struct{}

func (EqualityTest) isTest()    {}
func (RelationalTest) isTest()  {}
func (DisjunctionTest) isTest() {}
func (ConjunctiveTest) isTest() {}
func (GoalTest) isTest()        {}
func (ImpasseTest) isTest()     {}

// Relation is the operator of a RelationalTest.
type Relation uint8

const (
	NotEqual Relation = iota + 1
	Less
	Greater
	LessOrEqual
	GreaterOrEqual
	SameType
)

var relationNames = map[Relation]string{
	NotEqual:       "<>",
	Less:           "<",
	Greater:        ">",
	LessOrEqual:    "<=",
	GreaterOrEqual: ">=",
	SameType:       "<=>",
}

// String returns the rule syntax of the relation.
func (r Relation) String() string {
	if s, ok := relationNames[r]; ok {
		return s
	}
	return "?"
}

// ParseRelation maps rule syntax to a Relation.
func ParseRelation(s string) (Relation, bool) {
	for r, name := range relationNames {
		if name == s {
			return r, true
		}
	}
	return 0, false
}

// Reverse returns the relation with its operands swapped:
// a < b holds iff b > a.
func (r Relation) Reverse() Relation {
	switch r {
	case Less:
		return Greater
	case Greater:
		return Less
	case LessOrEqual:
		return GreaterOrEqual
	case GreaterOrEqual:
		return LessOrEqual
	}
	return r
}

// Holds evaluates a Rel b. Ordering relations hold only between numbers.
func (r Relation) Holds(a, b *symtab.Symbol) bool {
	switch r {
	case NotEqual:
		return a != b
	case SameType:
		return symtab.SameType(a, b)
	}
	cmp, ok := symtab.CompareNumeric(a, b)
	if !ok {
		return false
	}
	switch r {
	case Less:
		return cmp < 0
	case Greater:
		return cmp > 0
	case LessOrEqual:
		return cmp <= 0
	case GreaterOrEqual:
		return cmp >= 0
	}
	return false
}

// EqualitySymbol returns the symbol of the plain equality test in t, or of
// the first equality sub-test of a conjunction. It returns nil when t has no
// equality test.
func EqualitySymbol(t Test) *symtab.Symbol {
	switch tt := t.(type) {
	case EqualityTest:
		return tt.Sym
	case ConjunctiveTest:
		for _, sub := range tt.Tests {
			if eq, ok := sub.(EqualityTest); ok {
				return eq.Sym
			}
		}
	}
	return nil
}

// Conjoin adds extra to t, flattening conjunctions.
func Conjoin(t Test, extra Test) Test {
	if t == nil {
		return extra
	}
	if extra == nil {
		return t
	}
	var tests []Test
	if c, ok := t.(ConjunctiveTest); ok {
		tests = append(tests, c.Tests...)
	} else {
		tests = append(tests, t)
	}
	if c, ok := extra.(ConjunctiveTest); ok {
		tests = append(tests, c.Tests...)
	} else {
		tests = append(tests, extra)
	}
	return ConjunctiveTest{Tests: tests}
}

// HasGoalTest reports whether t contains a goal marker.
func HasGoalTest(t Test) bool {
	found := false
	walkTest(t, func(sub Test) {
		if _, ok := sub.(GoalTest); ok {
			found = true
		}
	})
	return found
}

// HasImpasseTest reports whether t contains an impasse marker.
func HasImpasseTest(t Test) bool {
	found := false
	walkTest(t, func(sub Test) {
		if _, ok := sub.(ImpasseTest); ok {
			found = true
		}
	})
	return found
}

// TestVariables calls fn for every variable mentioned by t, either as an
// equality symbol or as a relational referent.
func TestVariables(t Test, fn func(*symtab.Symbol)) {
	walkTest(t, func(sub Test) {
		switch st := sub.(type) {
		case EqualityTest:
			if st.Sym.IsVariable() {
				fn(st.Sym)
			}
		case RelationalTest:
			if st.Referent.IsVariable() {
				fn(st.Referent)
			}
		}
	})
}

// RelationalReferents calls fn for every variable referent of a relational
// test inside t.
func RelationalReferents(t Test, fn func(*symtab.Symbol)) {
	walkTest(t, func(sub Test) {
		if rt, ok := sub.(RelationalTest); ok && rt.Referent.IsVariable() {
			fn(rt.Referent)
		}
	})
}

// walkTest visits the leaves of t.
func walkTest(t Test, fn func(Test)) {
	if t == nil {
		return
	}
	if c, ok := t.(ConjunctiveTest); ok {
		for _, sub := range c.Tests {
			walkTest(sub, fn)
		}
		return
	}
	fn(t)
}

// ReleaseTest gives back the symbol references held by t.
func ReleaseTest(syms *symtab.Table, t Test) {
	walkTest(t, func(sub Test) {
		switch st := sub.(type) {
		case EqualityTest:
			syms.Release(st.Sym)
		case RelationalTest:
			syms.Release(st.Referent)
		case DisjunctionTest:
			for _, s := range st.Syms {
				syms.Release(s)
			}
		}
	})
}
