package reorder

import (
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// reorderActions places actions so that each one only uses variables bound
// on the left-hand side or created by an earlier action. Among the legal
// actions the earliest in the original order goes first.
func (r *Reorderer) reorderActions(p *ir.Production, bound boundSet) ([]*ir.Action, error) {
	remaining := slices.Clone(p.Actions)
	out := make([]*ir.Action, 0, len(remaining))
	for len(remaining) > 0 {
		idx := slices.IndexFunc(remaining, func(a *ir.Action) bool { return legalAction(a, bound) })
		if idx < 0 {
			break
		}
		a := remaining[idx]
		out = append(out, a)
		remaining = slices.Delete(remaining, idx, idx+1)
		bindActionVariables(a, bound)
	}

	if len(remaining) > 0 {
		rendered := make([]string, len(remaining))
		for i, a := range remaining {
			rendered[i] = ir.RenderAction(nil, a)
		}
		return nil, &Failure{
			Code:       CodeUnorderableRHS,
			Production: p.Name,
			Message:    "actions use identifiers that are never bound or created",
			Actions:    rendered,
		}
	}
	return out, nil
}

// legalAction reports whether a can run with the given bindings. A make
// action needs its identifier and every function-call argument bound. Plain
// variables in the other fields may be new, so the action creates them.
func legalAction(a *ir.Action, bound boundSet) bool {
	if a.Kind == ir.FuncCallAction {
		return valueBound(a.Value, bound)
	}
	if !valueBound(a.ID, bound) {
		return false
	}
	for _, v := range []ir.Value{a.Attr, a.Value, a.Referent} {
		if ir.IsFuncCall(v) && !valueBound(v, bound) {
			return false
		}
	}
	return true
}

func valueBound(v ir.Value, bound boundSet) bool {
	ok := true
	ir.ValueVariables(v, func(s *symtab.Symbol) {
		if !bound[s] {
			ok = false
		}
	})
	return ok
}

// bindActionVariables marks the plain variables a make action creates.
func bindActionVariables(a *ir.Action, bound boundSet) {
	if a.Kind != ir.MakeAction {
		return
	}
	for _, v := range []ir.Value{a.ID, a.Attr, a.Value, a.Referent} {
		if lit, ok := v.(ir.Literal); ok && lit.Sym.IsVariable() {
			bound[lit.Sym] = true
		}
	}
}
