package engine

import (
	"github.com/roach88/prodsys/internal/ir"
)

func deallocatable(inst *ir.Instantiation) bool {
	return inst.State == ir.StateRetracted && len(inst.Prefs) == 0
}

func (e *Engine) tryDeallocate(inst *ir.Instantiation) {
	if deallocatable(inst) {
		e.deallocate(inst)
	}
}

// deallocate frees first and every instantiation that only first kept
// alive. Traces are followed with an explicit worklist: releasing a
// condition's trace may leave the trace's owner with no preferences, which
// puts the owner on the same worklist. Records are released in reverse
// discovery order once the closure is known.
func (e *Engine) deallocate(first *ir.Instantiation) {
	first.State = ir.StatePendingDeletion
	worklist := []*ir.Instantiation{first}

	for i := 0; i < len(worklist); i++ {
		inst := worklist[i]
		for j := range inst.Conds {
			trace := inst.Conds[j].Trace
			if trace == nil {
				continue
			}
			inst.Conds[j].Trace = nil
			if trace.RemoveRef() > 0 {
				continue
			}
			owner := trace.Inst
			e.detachPref(trace)
			if owner != nil && deallocatable(owner) {
				owner.State = ir.StatePendingDeletion
				worklist = append(worklist, owner)
			}
		}
	}

	for i := len(worklist) - 1; i >= 0; i-- {
		e.release(worklist[i])
	}
	if len(worklist) > 1 {
		e.logger.Debug("deallocated backtrace chain",
			"inst_id", first.ID,
			"count", len(worklist))
	}
}

// release frees one pending instantiation.
func (e *Engine) release(inst *ir.Instantiation) {
	if inst.State != ir.StatePendingDeletion {
		invariant(inst.ID, "release in state %s", inst.State)
	}
	if len(inst.Prefs) > 0 {
		invariant(inst.ID, "release with %d preferences", len(inst.Prefs))
	}
	inst.State = ir.StateDeallocated
	e.live--
	e.logger.Debug("instantiation deallocated",
		"production", inst.Name(),
		"inst_id", inst.ID)
	e.notifyDeallocated(inst)

	for _, ic := range inst.Conds {
		if w := ic.WME; w != nil {
			e.syms.Release(w.ID)
			e.syms.Release(w.Attr)
			e.syms.Release(w.Value)
		}
	}
	if inst.MatchGoal != nil {
		e.syms.Release(inst.MatchGoal)
	}

	p := inst.Prod
	if p == nil {
		return
	}
	e.reg.RemoveRef(p)
	if p.Type == ir.JustificationProduction && !p.Excised && p.RefCount() == 1 && p.LiveInstantiations() == 0 {
		e.excise(p)
	}
}
