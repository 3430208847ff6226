// Package symtab implements the interned, reference-counted atoms that every
// other package shares: identifiers, variables, and string/integer/float
// constants.
//
// Symbols are created only through a Table. Each creating call hands the
// caller one reference; the caller gives it back with Table.Release when the
// structure that stored the symbol is destroyed.
package symtab

import (
	"strconv"
	"strings"
)

// Kind discriminates the symbol variants.
type Kind uint8

const (
	// IdentifierKind is a working-memory object id such as S1 or O3.
	IdentifierKind Kind = iota + 1
	// VariableKind is a rule variable such as <s>.
	VariableKind
	// StrConstantKind is a string constant.
	StrConstantKind
	// IntConstantKind is an integer constant.
	IntConstantKind
	// FloatConstantKind is a float constant.
	FloatConstantKind
)

// String returns the kind name used in diagnostics and the trace store.
func (k Kind) String() string {
	switch k {
	case IdentifierKind:
		return "identifier"
	case VariableKind:
		return "variable"
	case StrConstantKind:
		return "string"
	case IntConstantKind:
		return "int"
	case FloatConstantKind:
		return "float"
	default:
		return "unknown"
	}
}

// Symbol is one interned atom.
//
// Identity is pointer identity: two symbols are equal iff they are the same
// *Symbol. The Table guarantees one Symbol per distinct value.
type Symbol struct {
	kind Kind

	str string // string constant text or variable name (with angle brackets)
	i   int64
	f   float64

	letter  byte
	number  uint64
	level   int
	goal    bool
	impasse bool

	hash uint64
	refs int
}

// Kind returns the variant.
func (s *Symbol) Kind() Kind { return s.kind }

// IsIdentifier reports whether s is an identifier.
func (s *Symbol) IsIdentifier() bool { return s != nil && s.kind == IdentifierKind }

// IsVariable reports whether s is a rule variable.
func (s *Symbol) IsVariable() bool { return s != nil && s.kind == VariableKind }

// IsConstant reports whether s is a string, integer or float constant.
func (s *Symbol) IsConstant() bool {
	return s != nil && (s.kind == StrConstantKind || s.kind == IntConstantKind || s.kind == FloatConstantKind)
}

// IsNumeric reports whether s is an integer or float constant.
func (s *Symbol) IsNumeric() bool {
	return s != nil && (s.kind == IntConstantKind || s.kind == FloatConstantKind)
}

// Str returns the text of a string constant or the name of a variable.
func (s *Symbol) Str() string { return s.str }

// Int returns the value of an integer constant.
func (s *Symbol) Int() int64 { return s.i }

// Float returns the value of a float constant.
func (s *Symbol) Float() float64 { return s.f }

// Number returns the numeric value of an int or float constant as float64.
func (s *Symbol) Number() float64 {
	if s.kind == IntConstantKind {
		return float64(s.i)
	}
	return s.f
}

// Letter returns an identifier's name letter.
func (s *Symbol) Letter() byte { return s.letter }

// IDNumber returns an identifier's number.
func (s *Symbol) IDNumber() uint64 { return s.number }

// Level returns the goal-stack depth an identifier currently belongs to.
// Top state is level 1; deeper substates have larger levels.
func (s *Symbol) Level() int { return s.level }

// SetLevel moves an identifier to a new goal-stack level.
func (s *Symbol) SetLevel(level int) { s.level = level }

// IsGoal reports whether the identifier is a goal (state).
func (s *Symbol) IsGoal() bool { return s.goal }

// IsImpasse reports whether the identifier is an impasse.
func (s *Symbol) IsImpasse() bool { return s.impasse }

// MarkGoal sets the goal marker.
func (s *Symbol) MarkGoal(v bool) { s.goal = v }

// MarkImpasse sets the impasse marker.
func (s *Symbol) MarkImpasse(v bool) { s.impasse = v }

// Hash returns the canonical hash of the symbol.
// Variables all share one hash so alpha-renamed rules hash alike.
func (s *Symbol) Hash() uint64 { return s.hash }

// RefCount returns the number of outstanding references.
func (s *Symbol) RefCount() int { return s.refs }

// FirstLetter returns the naming hint used when an identifier is generated
// from this symbol (for example the value of ^operator yields O1).
func (s *Symbol) FirstLetter() byte {
	if s == nil {
		return 'I'
	}
	switch s.kind {
	case VariableKind:
		if len(s.str) > 1 {
			return s.str[1]
		}
	case IdentifierKind:
		return s.letter
	case StrConstantKind:
		if len(s.str) > 0 {
			return s.str[0]
		}
	}
	return 'I'
}

// String renders the symbol the way rules are written.
func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	switch s.kind {
	case IdentifierKind:
		return string(s.letter) + strconv.FormatUint(s.number, 10)
	case VariableKind:
		return s.str
	case IntConstantKind:
		return strconv.FormatInt(s.i, 10)
	case FloatConstantKind:
		out := strconv.FormatFloat(s.f, 'f', -1, 64)
		if !strings.ContainsAny(out, ".eEIN") {
			out += ".0"
		}
		return out
	case StrConstantKind:
		if needsPipes(s.str) {
			return "|" + s.str + "|"
		}
		return s.str
	}
	return "?"
}

// needsPipes reports whether a string constant would be misread without
// |...| quoting: empty, containing spaces or reserved characters, or looking
// like a number, a variable, or an identifier.
func needsPipes(str string) bool {
	if str == "" {
		return true
	}
	if strings.ContainsAny(str, " \t\n|()^{}<>+=~!;\"") {
		return true
	}
	if _, err := strconv.ParseFloat(str, 64); err == nil {
		return true
	}
	if looksLikeIdentifier(str) {
		return true
	}
	return false
}

func looksLikeIdentifier(str string) bool {
	if len(str) < 2 || str[0] < 'A' || str[0] > 'Z' {
		return false
	}
	for i := 1; i < len(str); i++ {
		if str[i] < '0' || str[i] > '9' {
			return false
		}
	}
	return true
}

// SameType reports whether two symbols have the same kind.
func SameType(a, b *Symbol) bool {
	return a != nil && b != nil && a.kind == b.kind
}

// CompareNumeric orders two numeric constants.
// ok is false when either symbol is not numeric.
func CompareNumeric(a, b *Symbol) (cmp int, ok bool) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return 0, false
	}
	if a.kind == IntConstantKind && b.kind == IntConstantKind {
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		}
		return 0, true
	}
	x, y := a.Number(), b.Number()
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}
