package ir

import (
	"fmt"
	"strings"

	"github.com/roach88/prodsys/internal/symtab"
)

// Preference is one proposed fact with a polarity, produced by exactly one
// instantiation.
//
// A preference is reference counted. One reference is held while it is
// installed in working memory and one by every instantiation condition that
// uses it as a backtrace trace. When the count reaches zero the engine
// detaches it from its instantiation and releases its symbols.
type Preference struct {
	Type     PreferenceType
	ID       *symtab.Symbol
	Attr     *symtab.Symbol
	Value    *symtab.Symbol
	Referent *symtab.Symbol

	// OSupported preferences survive retraction of their instantiation.
	OSupported bool

	// Inst is the instantiation that produced the preference.
	Inst *Instantiation

	// Level is the match-goal level of the producing instantiation.
	Level int

	// InTM is true while the preference is installed in working memory.
	InTM bool

	// OnGoalList is true while the preference sits on its match goal's
	// per-goal list.
	OnGoalList bool

	refs int
}

// AddRef takes a reference.
func (p *Preference) AddRef() {
	p.refs++
}

// RemoveRef releases a reference and returns the remaining count.
// Releasing below zero panics: it means a trace was released twice.
func (p *Preference) RemoveRef() int {
	if p.refs <= 0 {
		panic(fmt.Sprintf("ir: preference %s released with refcount %d", p, p.refs))
	}
	p.refs--
	return p.refs
}

// RefCount returns the number of outstanding references.
func (p *Preference) RefCount() int {
	return p.refs
}

// String renders the preference as "(S1 ^bar 2 +)".
func (p *Preference) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%s ^%s %s %s", p.ID, p.Attr, p.Value, p.Type.Symbol())
	if p.Referent != nil {
		fmt.Fprintf(&b, " %s", p.Referent)
	}
	b.WriteByte(')')
	return b.String()
}

// Matches reports whether the preference has the given type and triple.
func (p *Preference) Matches(t PreferenceType, id, attr, value *symtab.Symbol) bool {
	return p.Type == t && p.ID == id && p.Attr == attr && p.Value == value
}

// OperatorAttr names the attribute of a goal's operator slot.
const OperatorAttr = "operator"

// IsOperatorAttr reports whether s is the operator attribute.
func IsOperatorAttr(s *symtab.Symbol) bool {
	return s != nil && s.Kind() == symtab.StrConstantKind && s.Str() == OperatorAttr
}
