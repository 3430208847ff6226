package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/rhs"
	"github.com/roach88/prodsys/internal/symtab"
)

// OnTokenMatched fires p against tok and returns the new instantiation.
// A token already in the match set returns its existing instantiation
// without firing again.
//
// Failed make actions do not fail the firing: they are logged, counted on
// the production and reported to failure listeners.
func (e *Engine) OnTokenMatched(p *ir.Production, tok ir.Token) (*ir.Instantiation, error) {
	if p.Excised {
		return nil, &RuntimeError{
			Code:       ErrCodeExcisedProduction,
			Message:    "match reported for excised production",
			Production: p.Name,
		}
	}
	if err := checkToken(p, tok); err != nil {
		return nil, err
	}

	key := ir.TokenKey(p, tok)
	if inst, ok := e.byKey[key]; ok {
		e.logger.Debug("token already in match set",
			"production", p.Name,
			"inst_id", inst.ID)
		return inst, nil
	}

	inst := &ir.Instantiation{
		ID:           uint64(e.clock.Next()),
		Prod:         p,
		Token:        slices.Clone(tok),
		Key:          key,
		State:        ir.StateBuilding,
		NewThisCycle: true,
	}
	e.reg.AddRef(p)
	e.live++

	// Conditions are captured before any action runs.
	e.captureConditions(inst)
	e.computeMatchGoal(inst)
	e.executeActions(inst)
	e.applySupport(inst)

	e.reg.Link(inst)
	inst.State = ir.StateInMatchSet
	e.byKey[key] = inst
	e.newThisCycle = append(e.newThisCycle, inst)
	e.addToGoal(inst)
	e.install(inst)
	p.FiringCount++

	e.logger.Debug("production fired",
		"production", p.Name,
		"inst_id", inst.ID,
		"goal_level", inst.MatchGoalLevel,
		"prefs", len(inst.Prefs))
	e.notifyFired(inst)
	return inst, nil
}

// Synthesize creates an architecture instantiation that owns prefs on
// behalf of goal. Ownership of the preferences' symbol references moves to
// the engine. Architecture instantiations are never in the match set; they
// are deallocated when their last preference goes away.
func (e *Engine) Synthesize(goal *symtab.Symbol, prefs []*ir.Preference) *ir.Instantiation {
	inst := &ir.Instantiation{
		ID:             uint64(e.clock.Next()),
		State:          ir.StateBuilding,
		NewThisCycle:   true,
		MatchGoalLevel: ir.NoMatchGoalLevel,
	}
	e.live++
	if goal != nil {
		inst.MatchGoal = e.syms.Retain(goal)
		inst.MatchGoalLevel = goal.Level()
	}
	for _, pref := range prefs {
		pref.Inst = inst
		pref.Level = inst.MatchGoalLevel
		pref.OSupported = false
		inst.Prefs = append(inst.Prefs, pref)
	}
	inst.State = ir.StateRetracted
	e.newThisCycle = append(e.newThisCycle, inst)
	e.addToGoal(inst)
	e.install(inst)

	e.logger.Debug("architecture instantiation created",
		"inst_id", inst.ID,
		"goal_level", inst.MatchGoalLevel,
		"prefs", len(inst.Prefs))
	e.notifyFired(inst)
	e.tryDeallocate(inst)
	return inst
}

func checkToken(p *ir.Production, tok ir.Token) error {
	if len(tok) != len(p.Conds) {
		return &RuntimeError{
			Code:       ErrCodeMalformedToken,
			Message:    fmt.Sprintf("token has %d elements for %d conditions", len(tok), len(p.Conds)),
			Production: p.Name,
		}
	}
	for i, c := range p.Conds {
		if c.Kind == ir.PositiveCondition && tok[i] == nil {
			return &RuntimeError{
				Code:       ErrCodeMalformedToken,
				Message:    fmt.Sprintf("no element for positive condition %d", i),
				Production: p.Name,
			}
		}
	}
	return nil
}

// captureConditions records the element, level and trace of every positive
// condition. The instantiation holds references on the element's symbols
// and on the trace.
func (e *Engine) captureConditions(inst *ir.Instantiation) {
	inst.Conds = make([]ir.InstCondition, len(inst.Prod.Conds))
	for i, c := range inst.Prod.Conds {
		ic := ir.InstCondition{Cond: c}
		if c.Kind == ir.PositiveCondition {
			w := inst.Token[i]
			ic.WME = w
			ic.Level = w.ID.Level()
			e.syms.Retain(w.ID)
			e.syms.Retain(w.Attr)
			e.syms.Retain(w.Value)
			if w.Pref != nil {
				ic.Trace = w.Pref
				ic.Trace.AddRef()
			}
		}
		inst.Conds[i] = ic
	}
}

// computeMatchGoal picks the deepest goal or impasse among the identifiers
// of the positive conditions.
func (e *Engine) computeMatchGoal(inst *ir.Instantiation) {
	var goal *symtab.Symbol
	for _, ic := range inst.Conds {
		if ic.WME == nil {
			continue
		}
		id := ic.WME.ID
		if !id.IsGoal() && !id.IsImpasse() {
			continue
		}
		if goal == nil || id.Level() > goal.Level() {
			goal = id
		}
	}
	if goal == nil {
		inst.MatchGoalLevel = ir.NoMatchGoalLevel
		return
	}
	inst.MatchGoal = e.syms.Retain(goal)
	inst.MatchGoalLevel = goal.Level()
}

// newIdentifierLevel is the level of identifiers the firing creates.
func newIdentifierLevel(inst *ir.Instantiation) int {
	if inst.MatchGoal != nil {
		return inst.MatchGoalLevel
	}
	level := 1
	for _, ic := range inst.Conds {
		if ic.WME != nil && ic.Level > level {
			level = ic.Level
		}
	}
	return level
}

// executeActions runs the actions in their reordered sequence. Make
// actions append to inst.Prefs.
func (e *Engine) executeActions(inst *ir.Instantiation) {
	p := inst.Prod
	ctx := rhs.NewContext(e.syms, p, inst.Token,
		rhs.WithOutput(e.out),
		rhs.WithLogger(e.logger),
		rhs.WithHalt(e.halt))
	defer ctx.Release()

	level := newIdentifierLevel(inst)
	for _, a := range p.Actions {
		switch a.Kind {
		case ir.FuncCallAction:
			s, err := ctx.Evaluate(a.Value, level, 'I')
			if err != nil {
				e.actionFailed(inst, a, err.Error())
				continue
			}
			if s != nil {
				e.syms.Release(s)
			}
		case ir.MakeAction:
			pref, reason := e.buildPreference(ctx, inst, a, level)
			if pref == nil {
				e.actionFailed(inst, a, reason)
				continue
			}
			inst.Prefs = append(inst.Prefs, pref)
		}
	}
}

func (e *Engine) actionFailed(inst *ir.Instantiation, a *ir.Action, reason string) {
	rendered := ir.RenderAction(inst.Prod, a)
	inst.Prod.FailureCount++
	err := NewActionError(inst.Name(), rendered, reason)
	e.logger.Warn("action failed",
		"production", inst.Name(),
		"inst_id", inst.ID,
		"action", rendered,
		"error", reason)
	e.notifyFailed(inst, err)
}

// buildPreference evaluates a make action. On failure it releases every
// symbol it evaluated and returns the reason.
func (e *Engine) buildPreference(ctx *rhs.Context, inst *ir.Instantiation, a *ir.Action, level int) (*ir.Preference, string) {
	var held []*symtab.Symbol
	fail := func(reason string) (*ir.Preference, string) {
		for _, s := range held {
			e.syms.Release(s)
		}
		return nil, reason
	}
	eval := func(v ir.Value, letter byte, field string) (*symtab.Symbol, string) {
		s, err := ctx.Evaluate(v, level, letter)
		if err != nil {
			return nil, err.Error()
		}
		if s == nil {
			return nil, field + " is void"
		}
		held = append(held, s)
		return s, ""
	}

	id, reason := eval(a.ID, 'I', "identifier")
	if id == nil {
		return fail(reason)
	}
	if !id.IsIdentifier() {
		return fail(fmt.Sprintf("identifier %s is not an identifier", id))
	}
	attr, reason := eval(a.Attr, 'A', "attribute")
	if attr == nil {
		return fail(reason)
	}
	value, reason := eval(a.Value, attr.FirstLetter(), "value")
	if value == nil {
		return fail(reason)
	}
	var referent *symtab.Symbol
	if a.Pref.IsBinary() {
		if a.Referent == nil {
			return fail("binary preference without a referent")
		}
		referent, reason = eval(a.Referent, 'I', "referent")
		if referent == nil {
			return fail(reason)
		}
	}
	if reason := checkPreference(a.Pref, id, attr, referent); reason != "" {
		return fail(reason)
	}

	return &ir.Preference{
		Type:     a.Pref,
		ID:       id,
		Attr:     attr,
		Value:    value,
		Referent: referent,
		Inst:     inst,
		Level:    inst.MatchGoalLevel,
	}, ""
}

// checkPreference rejects preference types that are only legal on a goal's
// operator slot, and binary preferences with the wrong kind of referent.
func checkPreference(t ir.PreferenceType, id, attr, referent *symtab.Symbol) string {
	if t == ir.AcceptablePref || t == ir.RejectPref {
		return ""
	}
	if !id.IsGoal() || !ir.IsOperatorAttr(attr) {
		return fmt.Sprintf("%s preference is only legal on a goal's operator", t)
	}
	switch t {
	case ir.BetterPref, ir.WorsePref, ir.BinaryIndifferentPref:
		if !referent.IsIdentifier() {
			return fmt.Sprintf("%s preference needs an identifier referent", t)
		}
	case ir.NumericIndifferentPref:
		if !referent.IsNumeric() {
			return fmt.Sprintf("%s preference needs a numeric referent", t)
		}
	}
	return ""
}

func (e *Engine) halt() {
	e.halted = true
	e.logger.Info("halt requested")
}

// addToGoal appends inst's preferences to its match goal's list.
func (e *Engine) addToGoal(inst *ir.Instantiation) {
	if inst.MatchGoal == nil {
		return
	}
	for _, pref := range inst.Prefs {
		e.goalPrefs[inst.MatchGoal] = append(e.goalPrefs[inst.MatchGoal], pref)
		pref.OnGoalList = true
	}
}

// install adds inst's preferences to working memory. Working memory holds
// one reference on each installed preference.
func (e *Engine) install(inst *ir.Instantiation) {
	for _, pref := range slices.Clone(inst.Prefs) {
		if err := e.mem.AddPreference(pref); err != nil {
			e.logger.Warn("preference rejected by working memory",
				"production", inst.Name(),
				"inst_id", inst.ID,
				"pref", pref.String(),
				"error", err)
			if inst.Prod != nil {
				inst.Prod.FailureCount++
			}
			e.detachPref(pref)
			continue
		}
		pref.InTM = true
		pref.AddRef()
	}
}
