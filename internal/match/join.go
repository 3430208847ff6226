package match

import (
	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// bindings maps variables to values with an undo trail for backtracking.
type bindings struct {
	vals  map[*symtab.Symbol]*symtab.Symbol
	trail []*symtab.Symbol
}

func newBindings() *bindings {
	return &bindings{vals: make(map[*symtab.Symbol]*symtab.Symbol)}
}

func (b *bindings) mark() int { return len(b.trail) }

func (b *bindings) undo(mark int) {
	for _, v := range b.trail[mark:] {
		delete(b.vals, v)
	}
	b.trail = b.trail[:mark]
}

func (b *bindings) bind(v, val *symtab.Symbol) {
	b.vals[v] = val
	b.trail = append(b.trail, v)
}

// resolve returns the value of s: itself for constants, the binding for
// bound variables and nil for unbound ones.
func (b *bindings) resolve(s *symtab.Symbol) *symtab.Symbol {
	if !s.IsVariable() {
		return s
	}
	return b.vals[s]
}

// Tokens returns every token that satisfies conds against wmes, in
// timetag order of the first differing element.
func Tokens(conds []*ir.Condition, wmes []*ir.WME) []ir.Token {
	var out []ir.Token
	tok := make(ir.Token, len(conds))
	join(conds, wmes, 0, tok, newBindings(), func() bool {
		out = append(out, append(ir.Token(nil), tok...))
		return true
	})
	return out
}

// join extends a partial match one condition at a time. emit returns false
// to stop the search.
func join(conds []*ir.Condition, wmes []*ir.WME, i int, tok ir.Token, b *bindings, emit func() bool) bool {
	if i == len(conds) {
		return emit()
	}
	c := conds[i]
	switch c.Kind {
	case ir.PositiveCondition:
		for _, w := range wmes {
			m := b.mark()
			if matchesElement(c, w, b) {
				tok[i] = w
				if !join(conds, wmes, i+1, tok, b, emit) {
					b.undo(m)
					return false
				}
			}
			b.undo(m)
		}
		tok[i] = nil
		return true

	case ir.NegativeCondition:
		m := b.mark()
		for _, w := range wmes {
			ok := matchesElement(c, w, b)
			b.undo(m)
			if ok {
				return true
			}
		}
		tok[i] = nil
		return join(conds, wmes, i+1, tok, b, emit)

	case ir.ConjunctiveNegation:
		if exists(c.NCC, wmes, b) {
			return true
		}
		tok[i] = nil
		return join(conds, wmes, i+1, tok, b, emit)
	}
	return true
}

// exists reports whether conds have at least one match under b. Bindings
// made while searching are undone.
func exists(conds []*ir.Condition, wmes []*ir.WME, b *bindings) bool {
	m := b.mark()
	found := false
	join(conds, wmes, 0, make(ir.Token, len(conds)), b, func() bool {
		found = true
		return false
	})
	b.undo(m)
	return found
}

func matchesElement(c *ir.Condition, w *ir.WME, b *bindings) bool {
	if c.Acceptable != w.Acceptable {
		return false
	}
	for _, f := range ir.Fields {
		if !satisfies(c.FieldTest(f), w.FieldSymbol(f), b) {
			return false
		}
	}
	return true
}

// satisfies checks one field test, binding unbound equality variables.
func satisfies(t ir.Test, val *symtab.Symbol, b *bindings) bool {
	switch tt := t.(type) {
	case nil:
		return true
	case ir.EqualityTest:
		want := b.resolve(tt.Sym)
		if want == nil {
			b.bind(tt.Sym, val)
			return true
		}
		return want == val
	case ir.RelationalTest:
		ref := b.resolve(tt.Referent)
		if ref == nil {
			return false
		}
		return tt.Rel.Holds(val, ref)
	case ir.DisjunctionTest:
		for _, s := range tt.Syms {
			if s == val {
				return true
			}
		}
		return false
	case ir.ConjunctiveTest:
		for _, sub := range tt.Tests {
			if !satisfies(sub, val, b) {
				return false
			}
		}
		return true
	case ir.GoalTest:
		return val.IsGoal()
	case ir.ImpasseTest:
		return val.IsImpasse()
	}
	return false
}
