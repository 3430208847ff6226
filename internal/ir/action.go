package ir

import (
	"github.com/roach88/prodsys/internal/symtab"
)

// PreferenceType is the polarity of a preference.
type PreferenceType uint8

const (
	AcceptablePref PreferenceType = iota + 1
	RequirePref
	RejectPref
	ProhibitPref
	BestPref
	BetterPref
	WorstPref
	WorsePref
	UnaryIndifferentPref
	BinaryIndifferentPref
	NumericIndifferentPref
)

var preferenceNames = map[PreferenceType]string{
	AcceptablePref:         "acceptable",
	RequirePref:            "require",
	RejectPref:             "reject",
	ProhibitPref:           "prohibit",
	BestPref:               "best",
	BetterPref:             "better",
	WorstPref:              "worst",
	WorsePref:              "worse",
	UnaryIndifferentPref:   "unary-indifferent",
	BinaryIndifferentPref:  "binary-indifferent",
	NumericIndifferentPref: "numeric-indifferent",
}

// String returns the long name used in logs and the trace store.
func (p PreferenceType) String() string {
	if s, ok := preferenceNames[p]; ok {
		return s
	}
	return "unknown"
}

// Symbol returns the rule syntax of the preference.
func (p PreferenceType) Symbol() string {
	switch p {
	case AcceptablePref:
		return "+"
	case RequirePref:
		return "!"
	case RejectPref:
		return "-"
	case ProhibitPref:
		return "~"
	case BestPref, BetterPref:
		return ">"
	case WorstPref, WorsePref:
		return "<"
	case UnaryIndifferentPref, BinaryIndifferentPref, NumericIndifferentPref:
		return "="
	}
	return "?"
}

// IsBinary reports whether the preference compares against a referent.
func (p PreferenceType) IsBinary() bool {
	return p == BetterPref || p == WorsePref || p == BinaryIndifferentPref || p == NumericIndifferentPref
}

// ParsePreference maps rule syntax to a type. binary selects the two-operand
// form of ">", "<" and "="; numeric selects the numeric-indifferent form.
func ParsePreference(sym string, binary, numeric bool) (PreferenceType, bool) {
	switch sym {
	case "", "+":
		return AcceptablePref, !binary
	case "!":
		return RequirePref, !binary
	case "-":
		return RejectPref, !binary
	case "~":
		return ProhibitPref, !binary
	case ">":
		if binary {
			return BetterPref, true
		}
		return BestPref, true
	case "<":
		if binary {
			return WorsePref, true
		}
		return WorstPref, true
	case "=":
		switch {
		case binary && numeric:
			return NumericIndifferentPref, true
		case binary:
			return BinaryIndifferentPref, true
		}
		return UnaryIndifferentPref, true
	}
	return 0, false
}

// ActionKind discriminates RHS action variants.
type ActionKind uint8

const (
	// MakeAction produces a preference.
	MakeAction ActionKind = iota + 1
	// FuncCallAction calls a function for its side effects.
	FuncCallAction
)

// Action is one node of a production's right-hand side.
//
// Make actions use ID, Attr, Value, Pref and (for binary preferences)
// Referent. Function-call actions hold a *FuncCall in Value.
type Action struct {
	Kind ActionKind
	Pref PreferenceType

	ID       Value
	Attr     Value
	Value    Value
	Referent Value
}

// Values returns the non-nil values of the action in evaluation order.
func (a *Action) Values() []Value {
	if a.Kind == FuncCallAction {
		return []Value{a.Value}
	}
	out := []Value{a.ID, a.Attr, a.Value}
	if a.Referent != nil {
		out = append(out, a.Referent)
	}
	return out
}

// ValuePtrs returns pointers to the non-nil values so encoders can rewrite
// them in place.
func (a *Action) ValuePtrs() []*Value {
	if a.Kind == FuncCallAction {
		return []*Value{&a.Value}
	}
	out := []*Value{&a.ID, &a.Attr, &a.Value}
	if a.Referent != nil {
		out = append(out, &a.Referent)
	}
	return out
}

// ReleaseActions gives back every symbol reference held by actions.
func ReleaseActions(syms *symtab.Table, actions []*Action) {
	for _, a := range actions {
		for _, v := range a.Values() {
			ReleaseValue(syms, v)
		}
	}
}
