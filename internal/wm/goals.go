package wm

import (
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// PushGoal creates a new goal one level below the current bottom goal.
// The top goal is at level 1. Memory owns the returned identifier.
func (m *Memory) PushGoal() *symtab.Symbol {
	g := m.syms.NewIdentifier('S', len(m.goals)+1)
	g.MarkGoal(true)
	m.goals = append(m.goals, g)
	m.logger.Debug("goal pushed", "goal", g.String(), "level", g.Level())
	return g
}

// PopGoal removes the bottom goal and every element on it. The engine must
// already have removed the goal's preferences.
func (m *Memory) PopGoal() {
	if len(m.goals) == 0 {
		return
	}
	g := m.goals[len(m.goals)-1]
	m.goals = m.goals[:len(m.goals)-1]

	m.deselect(g)
	for key, e := range m.entries {
		if key.id == g {
			m.destroy(key, e)
		}
	}
	for key := range m.slots {
		if key.id == g {
			delete(m.slots, key)
			delete(m.slotElems, key)
		}
	}
	g.MarkGoal(false)
	m.logger.Debug("goal popped", "goal", g.String())
	m.syms.Release(g)
}

// Goals returns the goal stack, top first.
func (m *Memory) Goals() []*symtab.Symbol {
	return slices.Clone(m.goals)
}

// BottomGoal returns the most recent goal, or nil.
func (m *Memory) BottomGoal() *symtab.Symbol {
	if len(m.goals) == 0 {
		return nil
	}
	return m.goals[len(m.goals)-1]
}

// Selected returns the operator currently selected for goal, or nil.
func (m *Memory) Selected(goal *symtab.Symbol) *symtab.Symbol {
	if w := m.selected[goal]; w != nil {
		return w.Value
	}
	return nil
}

// SelectOperator chooses among the operators proposed for goal and
// installs (goal ^operator choice). It reports whether the selection
// changed.
//
// Require preferences win outright. Otherwise best, better, worse and
// worst preferences filter the acceptable candidates, and a remaining tie
// goes to the earliest proposal.
func (m *Memory) SelectOperator(goal *symtab.Symbol) (*symtab.Symbol, bool) {
	attr := m.syms.FindStr(OperatorAttr)
	if attr == nil {
		return nil, m.deselect(goal)
	}
	choice := choose(m.slots[slotKey{id: goal, attr: attr}])
	if choice == nil {
		return nil, m.deselect(goal)
	}
	if cur := m.selected[goal]; cur != nil && cur.Value == choice {
		return choice, false
	}
	m.deselect(goal)

	key := elemKey{id: goal, attr: attr, value: choice}
	e := m.entries[key]
	if e == nil {
		e = m.create(key, nil)
	}
	e.fact = true
	m.selected[goal] = e.wme
	m.logger.Debug("operator selected", "goal", goal.String(), "operator", choice.String())
	return choice, true
}

// deselect removes the selected-operator element of goal.
func (m *Memory) deselect(goal *symtab.Symbol) bool {
	w := m.selected[goal]
	if w == nil {
		return false
	}
	delete(m.selected, goal)
	m.RemoveFact(w)
	return true
}

// checkSelection drops a selection whose operator is no longer proposed.
func (m *Memory) checkSelection(goal *symtab.Symbol) {
	w := m.selected[goal]
	if w == nil {
		return
	}
	if m.entries[elemKey{id: goal, attr: w.Attr, value: w.Value, acceptable: true}] == nil {
		m.deselect(goal)
	}
}

func choose(prefs []*ir.Preference) *symtab.Symbol {
	var candidates, required []*symtab.Symbol
	excluded := make(map[*symtab.Symbol]bool)
	for _, p := range prefs {
		if p.Type == ir.RejectPref || p.Type == ir.ProhibitPref {
			excluded[p.Value] = true
		}
	}
	for _, p := range prefs {
		if excluded[p.Value] {
			continue
		}
		switch p.Type {
		case ir.AcceptablePref:
			if !slices.Contains(candidates, p.Value) {
				candidates = append(candidates, p.Value)
			}
		case ir.RequirePref:
			if !slices.Contains(required, p.Value) {
				required = append(required, p.Value)
			}
		}
	}
	if len(required) > 0 {
		return required[0]
	}
	if len(candidates) == 0 {
		return nil
	}

	has := func(t ir.PreferenceType, v *symtab.Symbol) bool {
		for _, p := range prefs {
			if p.Type == t && p.Value == v {
				return true
			}
		}
		return false
	}
	if best := filter(candidates, func(v *symtab.Symbol) bool { return has(ir.BestPref, v) }); len(best) > 0 {
		candidates = best
	}
	dominated := func(v *symtab.Symbol) bool {
		for _, p := range prefs {
			if p.Type == ir.BetterPref && p.Referent == v && slices.Contains(candidates, p.Value) {
				return true
			}
			if p.Type == ir.WorsePref && p.Value == v && slices.Contains(candidates, p.Referent) {
				return true
			}
		}
		return false
	}
	if rest := filter(candidates, func(v *symtab.Symbol) bool { return !dominated(v) }); len(rest) > 0 {
		candidates = rest
	}
	if rest := filter(candidates, func(v *symtab.Symbol) bool { return !has(ir.WorstPref, v) }); len(rest) > 0 {
		candidates = rest
	}
	return candidates[0]
}

func filter(in []*symtab.Symbol, keep func(*symtab.Symbol) bool) []*symtab.Symbol {
	var out []*symtab.Symbol
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
