package engine

import (
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// supportFor returns the o-support of each of inst's preferences. It reads
// inst without changing anything, so repeated calls agree. mixed reports
// that operator elaborations were demoted along with o-supported actions.
//
// A production's declaration wins over the engine's mode. In automatic
// mode a production that proposes an operator for its match goal gets
// i-support. A production that tests the selected operator of its match
// goal gets o-support, except for elaborations of the operator itself.
func (e *Engine) supportFor(inst *ir.Instantiation) (support []bool, mixed bool) {
	support = make([]bool, len(inst.Prefs))
	fill := func(v bool) {
		for i := range support {
			support[i] = v
		}
	}

	decl := ir.SupportUnspecified
	if inst.Prod != nil {
		decl = inst.Prod.Support
	}
	switch decl {
	case ir.DeclaredOSupport:
		fill(true)
		return support, false
	case ir.DeclaredISupport:
		return support, false
	}
	switch e.supportMode {
	case SupportOperator:
		fill(true)
		return support, false
	case SupportInstantiation:
		return support, false
	}

	goal := inst.MatchGoal
	if inst.Prod == nil || goal == nil {
		return support, false
	}
	for _, pref := range inst.Prefs {
		if pref.Type == ir.AcceptablePref && pref.ID == goal && ir.IsOperatorAttr(pref.Attr) {
			return support, false
		}
	}

	ops := selectedOperators(inst, goal)
	if len(ops) == 0 {
		return support, false
	}
	elaborates, other := false, false
	for i, pref := range inst.Prefs {
		if slices.Contains(ops, pref.ID) {
			elaborates = true
			continue
		}
		support[i] = true
		other = true
	}
	if elaborates && other {
		fill(false)
		return support, true
	}
	return support, false
}

// selectedOperators returns the operators of goal tested by inst's
// positive conditions.
func selectedOperators(inst *ir.Instantiation, goal *symtab.Symbol) []*symtab.Symbol {
	var ops []*symtab.Symbol
	for _, ic := range inst.Conds {
		w := ic.WME
		if w == nil || w.Acceptable || w.ID != goal || !ir.IsOperatorAttr(w.Attr) {
			continue
		}
		ops = append(ops, w.Value)
	}
	return ops
}

func (e *Engine) applySupport(inst *ir.Instantiation) {
	support, mixed := e.supportFor(inst)
	if mixed {
		e.logger.Warn("operator elaborations mixed with o-supported actions; using i-support",
			"production", inst.Name(),
			"inst_id", inst.ID)
	}
	for i, pref := range inst.Prefs {
		pref.OSupported = support[i]
	}
}
