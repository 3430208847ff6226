package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// OnTokenRetracted takes the instantiation of (p, tok) out of the match
// set. Its i-supported preferences leave working memory; o-supported ones
// stay until something removes them.
func (e *Engine) OnTokenRetracted(p *ir.Production, tok ir.Token) error {
	key := ir.TokenKey(p, tok)
	inst, ok := e.byKey[key]
	if !ok {
		return &RuntimeError{
			Code:       ErrCodeNotInMatchSet,
			Message:    fmt.Sprintf("no instantiation for token %s", key),
			Production: p.Name,
		}
	}
	e.retract(inst)
	return nil
}

func (e *Engine) retract(inst *ir.Instantiation) {
	delete(e.byKey, inst.Key)
	for _, pref := range slices.Clone(inst.Prefs) {
		if pref.InTM && !pref.OSupported {
			e.removeFromMemory(pref)
		}
	}
	e.reg.Unlink(inst)
	inst.State = ir.StateRetracted

	e.logger.Debug("production retracted",
		"production", inst.Name(),
		"inst_id", inst.ID)
	e.notifyRetracted(inst)
	e.tryDeallocate(inst)
}

// RemovePreference takes an installed preference out of working memory,
// whatever its support. The working-memory manager calls it to drop
// o-supported results.
func (e *Engine) RemovePreference(pref *ir.Preference) {
	if !pref.InTM {
		return
	}
	e.removeFromMemory(pref)
}

// RemoveGoal removes every installed preference whose match goal is goal,
// o-supported or not.
func (e *Engine) RemoveGoal(goal *symtab.Symbol) {
	prefs := e.goalPrefs[goal]
	delete(e.goalPrefs, goal)
	for _, pref := range prefs {
		pref.OnGoalList = false
	}
	for _, pref := range prefs {
		if pref.InTM {
			e.removeFromMemory(pref)
		}
	}
	e.logger.Debug("goal removed", "goal", goal.String(), "prefs", len(prefs))
}

// Excise retracts every instantiation of p in the match set and removes p
// from the registry. It reports false when p was already excised before
// the call.
func (e *Engine) Excise(p *ir.Production) bool {
	if p.Excised {
		return false
	}
	var insts []*ir.Instantiation
	p.EachInstantiation(func(inst *ir.Instantiation) {
		insts = append(insts, inst)
	})
	for _, inst := range insts {
		e.retract(inst)
	}
	// A justification goes with its last instantiation.
	if p.Excised {
		return true
	}
	return e.excise(p)
}

func (e *Engine) excise(p *ir.Production) bool {
	name := p.Name
	if !e.reg.Excise(p) {
		return false
	}
	e.logger.Debug("production excised", "production", name)
	e.notifyExcised(p)
	return true
}

func (e *Engine) removeFromMemory(pref *ir.Preference) {
	e.mem.RemovePreference(pref)
	pref.InTM = false
	if pref.RemoveRef() > 0 {
		return
	}
	owner := pref.Inst
	e.detachPref(pref)
	if owner != nil {
		e.tryDeallocate(owner)
	}
}

// detachPref unlinks an unreferenced preference from its instantiation and
// goal list and releases its symbols.
func (e *Engine) detachPref(pref *ir.Preference) {
	owner := pref.Inst
	if owner != nil && !owner.RemovePref(pref) {
		invariant(owner.ID, "preference %s missing from its instantiation", pref)
	}
	if pref.OnGoalList && owner != nil {
		goal := owner.MatchGoal
		list := e.goalPrefs[goal]
		if idx := slices.Index(list, pref); idx >= 0 {
			list = slices.Delete(list, idx, idx+1)
		}
		if len(list) == 0 {
			delete(e.goalPrefs, goal)
		} else {
			e.goalPrefs[goal] = list
		}
		pref.OnGoalList = false
	}
	e.syms.Release(pref.ID)
	e.syms.Release(pref.Attr)
	e.syms.Release(pref.Value)
	if pref.Referent != nil {
		e.syms.Release(pref.Referent)
	}
}
