package reorder

import (
	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// savedTest is a non-equality test lifted off a field during planning,
// keyed by the equality variable of the field it came from.
type savedTest struct {
	v    *symtab.Symbol
	test ir.Test
}

// simplify reduces every field of the positive and negative conditions in
// list to a single equality test. Everything else is saved for restore.
// reqs lists, per condition, the relational referents its saved tests need.
func (r *Reorderer) simplify(list []*ir.Condition) (saved []savedTest, reqs map[*ir.Condition][]*symtab.Symbol) {
	reqs = make(map[*ir.Condition][]*symtab.Symbol)
	for _, c := range list {
		if c.Kind == ir.ConjunctiveNegation {
			continue
		}
		for _, f := range ir.Fields {
			tp := c.FieldTestPtr(f)
			eq, extra := r.simplifyTest(*tp)
			*tp = eq
			for _, st := range extra {
				saved = append(saved, st)
				if ref := referentOf(st.test); ref.IsVariable() {
					reqs[c] = append(reqs[c], ref)
				}
			}
		}
	}
	return saved, reqs
}

func (r *Reorderer) simplifyTest(t ir.Test) (ir.Test, []savedTest) {
	switch tt := t.(type) {
	case ir.EqualityTest:
		return tt, nil
	case nil:
		return ir.EqualityTest{Sym: r.syms.GenerateVariable("dummy-")}, nil
	case ir.ConjunctiveTest:
		var eq *symtab.Symbol
		var others []ir.Test
		for _, sub := range tt.Tests {
			if e, ok := sub.(ir.EqualityTest); ok && eq == nil {
				eq = e.Sym
				continue
			}
			others = append(others, sub)
		}
		if eq == nil {
			eq = r.syms.GenerateVariable("dummy-")
		}
		saved := make([]savedTest, len(others))
		for i, o := range others {
			saved[i] = savedTest{v: eq, test: o}
		}
		return ir.EqualityTest{Sym: eq}, saved
	default:
		v := r.syms.GenerateVariable("dummy-")
		return ir.EqualityTest{Sym: v}, []savedTest{{v: v, test: t}}
	}
}

// referentOf returns the symbol a saved test compares against, if any.
func referentOf(t ir.Test) *symtab.Symbol {
	switch tt := t.(type) {
	case ir.RelationalTest:
		return tt.Referent
	case ir.EqualityTest:
		return tt.Sym
	}
	return nil
}

// restore puts saved tests back onto the earliest field where they can be
// evaluated. Tests that find no home are dropped with a warning.
func (r *Reorderer) restore(p *ir.Production, ordered []*ir.Condition, bound boundSet, saved []savedTest) {
	b := bound.clone()
	for _, c := range ordered {
		if c.Kind == ir.ConjunctiveNegation {
			continue
		}
		local := b
		if c.Kind == ir.NegativeCondition {
			local = b.clone()
		}
		for _, f := range ir.Fields {
			tp := c.FieldTestPtr(f)
			saved = r.restoreField(tp, f == ir.FieldID, local, saved)
			if v := ir.EqualitySymbol(*tp); v.IsVariable() {
				local[v] = true
			}
		}
	}

	for _, st := range saved {
		r.logger.Warn("dropping test that cannot be placed",
			"production", p.Name,
			"variable", st.v.String(),
			"test", ir.RenderTest(st.test))
		ir.ReleaseTest(r.syms, st.test)
	}
}

// restoreField moves every saved test that can live on the field behind tp
// onto it and returns the rest.
func (r *Reorderer) restoreField(tp *ir.Test, isID bool, bound boundSet, saved []savedTest) []savedTest {
	eq := ir.EqualitySymbol(*tp)
	var rest []savedTest
	for _, st := range saved {
		switch tt := st.test.(type) {
		case ir.GoalTest:
			if isID && st.v == eq {
				if !ir.HasGoalTest(*tp) {
					*tp = ir.Conjoin(*tp, tt)
				}
				continue
			}
		case ir.ImpasseTest:
			if isID && st.v == eq {
				if !ir.HasImpasseTest(*tp) {
					*tp = ir.Conjoin(*tp, tt)
				}
				continue
			}
		case ir.DisjunctionTest:
			if st.v == eq {
				*tp = ir.Conjoin(*tp, tt)
				continue
			}
		case ir.EqualityTest:
			if st.v == eq && bound.covers(tt.Sym) {
				*tp = ir.Conjoin(*tp, tt)
				continue
			}
		case ir.RelationalTest:
			if st.v == eq && (bound.covers(tt.Referent) || tt.Referent == st.v) {
				*tp = ir.Conjoin(*tp, tt)
				continue
			}
			if tt.Referent == eq && eq.IsVariable() && bound.covers(st.v) {
				reversed := ir.RelationalTest{Rel: tt.Rel.Reverse(), Referent: r.syms.Retain(st.v)}
				r.syms.Release(tt.Referent)
				*tp = ir.Conjoin(*tp, reversed)
				continue
			}
		}
		rest = append(rest, st)
	}
	return rest
}
