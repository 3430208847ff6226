// Package reorder plans the evaluation order of a production's conditions
// and actions before the production is registered.
//
// Conditions are ordered greedily by estimated match cost so that every
// variable is bound before a condition needs it. Actions are ordered so
// that no action uses a variable before it is produced. A production that
// cannot be ordered is rejected with a typed *Failure.
package reorder

import (
	"log/slog"
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// MaxCost marks a condition that cannot be matched from the current
// bindings.
const MaxCost = 10000005

// Cost multipliers for unbound fields.
const (
	AttributeFactor  = 8
	ValueFactor      = 8
	AcceptableFactor = 8
)

// BranchingFactors maps attribute names to an extra multiplier on the cost
// of an unbound value for that attribute. Attributes not listed weigh 1.
type BranchingFactors map[string]int

// Reorderer reorders productions. It is safe to reuse across productions
// but not for concurrent use, since it generates variables in a shared
// symbol table.
type Reorderer struct {
	syms      *symtab.Table
	branching BranchingFactors
	logger    *slog.Logger
}

// Option configures a Reorderer.
type Option func(*Reorderer)

// WithLogger sets the logger for warnings about dropped tests.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reorderer) {
		r.logger = logger
	}
}

// WithBranchingFactors sets per-attribute value cost multipliers.
func WithBranchingFactors(bf BranchingFactors) Option {
	return func(r *Reorderer) {
		r.branching = bf
	}
}

// New creates a Reorderer that generates helper variables in syms.
func New(syms *symtab.Table, opts ...Option) *Reorderer {
	r := &Reorderer{
		syms:   syms,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Params controls a single Reorder call.
type Params struct {
	// ReorderNCCs recurses into conjunctive negations.
	ReorderNCCs bool

	// Bound lists variables already bound by an enclosing context.
	Bound []*symtab.Symbol

	// Ungrounded, when non-nil, collects root variables that are not
	// tested as a goal or impasse instead of failing on them.
	Ungrounded *[]*symtab.Symbol
}

// Reorder rewrites p.Conds and p.Actions in place into a legal evaluation
// order. On failure p may have been partially rewritten and must not be
// registered.
func (r *Reorderer) Reorder(p *ir.Production, params Params) error {
	bound := make(boundSet, len(params.Bound))
	for _, v := range params.Bound {
		bound[v] = true
	}

	if err := r.checkNegatedRelationals(p); err != nil {
		return err
	}

	roots := collectRoots(p.Conds, bound)
	if err := r.checkGrounding(p, roots, params.Ungrounded); err != nil {
		return err
	}

	conds, err := r.reorderConditionList(p, p.Conds, roots, bound, params.ReorderNCCs)
	if err != nil {
		return err
	}
	p.Conds = conds

	lhs := bound.clone()
	for _, c := range p.Conds {
		lhs.bindCondition(c)
	}
	actions, err := r.reorderActions(p, lhs)
	if err != nil {
		return err
	}
	p.Actions = actions
	return nil
}

// boundSet tracks the variables bound so far.
type boundSet map[*symtab.Symbol]bool

func (b boundSet) clone() boundSet {
	out := make(boundSet, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// covers reports whether s is a constant or a bound variable.
func (b boundSet) covers(s *symtab.Symbol) bool {
	if s == nil {
		return false
	}
	return !s.IsVariable() || b[s]
}

// bindCondition adds the equality variables of a positive condition.
func (b boundSet) bindCondition(c *ir.Condition) {
	if c.Kind != ir.PositiveCondition {
		return
	}
	c.EqualityVariables(func(_ ir.Field, v *symtab.Symbol) { b[v] = true })
}

// collectRoots returns the unbound identifier variables of positive
// conditions that never appear as a value, in order of first appearance.
func collectRoots(conds []*ir.Condition, bound boundSet) []*symtab.Symbol {
	var ids []*symtab.Symbol
	seen := make(map[*symtab.Symbol]bool)
	values := make(map[*symtab.Symbol]bool)
	for _, c := range conds {
		if c.Kind != ir.PositiveCondition {
			continue
		}
		if id := ir.EqualitySymbol(c.ID); id.IsVariable() && !bound[id] && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		if v := ir.EqualitySymbol(c.Value); v.IsVariable() {
			values[v] = true
		}
	}
	roots := ids[:0]
	for _, id := range ids {
		if !values[id] {
			roots = append(roots, id)
		}
	}
	return roots
}

// checkGrounding verifies that every root is tested as a goal or impasse.
func (r *Reorderer) checkGrounding(p *ir.Production, roots []*symtab.Symbol, collect *[]*symtab.Symbol) error {
	hasPositive := false
	for _, c := range p.Conds {
		if c.Kind == ir.PositiveCondition {
			hasPositive = true
			break
		}
	}
	if !hasPositive {
		return &Failure{
			Code:       CodeNoRootGoal,
			Production: p.Name,
			Message:    "production has no positive conditions",
		}
	}
	if len(roots) == 0 {
		return &Failure{
			Code:       CodeNoRootGoal,
			Production: p.Name,
			Message:    "no root variable reaches a goal or impasse test",
		}
	}

	var ungrounded []*symtab.Symbol
	for _, root := range roots {
		if !isGrounded(p.Conds, root) {
			ungrounded = append(ungrounded, root)
		}
	}
	if len(ungrounded) == 0 {
		return nil
	}
	if collect != nil {
		*collect = append(*collect, ungrounded...)
		return nil
	}
	names := make([]string, len(ungrounded))
	for i, v := range ungrounded {
		names[i] = v.String()
	}
	return &Failure{
		Code:       CodeUngrounded,
		Production: p.Name,
		Message:    "root variables are not tested as a state or impasse",
		Symbols:    names,
	}
}

func isGrounded(conds []*ir.Condition, root *symtab.Symbol) bool {
	for _, c := range conds {
		if c.Kind != ir.PositiveCondition || ir.EqualitySymbol(c.ID) != root {
			continue
		}
		if ir.HasGoalTest(c.ID) || ir.HasImpasseTest(c.ID) {
			return true
		}
	}
	return false
}

// checkNegatedRelationals rejects relational tests inside negations whose
// referent no positive condition binds.
func (r *Reorderer) checkNegatedRelationals(p *ir.Production) error {
	bound := ir.PositiveBindings(p.Conds, true)
	var offending []*ir.Condition
	var names []string
	seen := make(map[*symtab.Symbol]bool)

	check := func(c *ir.Condition) {
		bad := false
		for _, f := range ir.Fields {
			ir.RelationalReferents(c.FieldTest(f), func(v *symtab.Symbol) {
				if bound[v] {
					return
				}
				bad = true
				if !seen[v] {
					seen[v] = true
					names = append(names, v.String())
				}
			})
		}
		if bad {
			offending = append(offending, c)
		}
	}

	var walk func(list []*ir.Condition, negated bool)
	walk = func(list []*ir.Condition, negated bool) {
		for _, c := range list {
			switch c.Kind {
			case ir.NegativeCondition:
				check(c)
			case ir.PositiveCondition:
				if negated {
					check(c)
				}
			case ir.ConjunctiveNegation:
				walk(c.NCC, true)
			}
		}
	}
	walk(p.Conds, false)

	if len(offending) == 0 {
		return nil
	}
	return &Failure{
		Code:       CodeUnboundNegatedRelational,
		Production: p.Name,
		Message:    "negated relational test refers to a variable no positive condition binds",
		Conditions: ir.RenderConditions(offending),
		Symbols:    names,
	}
}

// reorderConditionList simplifies, orders and restores one condition list.
func (r *Reorderer) reorderConditionList(p *ir.Production, list []*ir.Condition, roots []*symtab.Symbol, bound boundSet, reorderNCCs bool) ([]*ir.Condition, error) {
	saved, reqs := r.simplify(list)
	ordered, err := r.order(p, list, roots, bound, reqs, reorderNCCs)
	if err != nil {
		return nil, err
	}
	r.restore(p, ordered, bound, saved)
	return ordered, nil
}

// planner holds the state of one greedy ordering pass.
type planner struct {
	r           *Reorderer
	roots       []*symtab.Symbol
	positive    boundSet // variables some positive condition binds
	reqs        map[*ir.Condition][]*symtab.Symbol
	index       map[*ir.Condition]int
	remaining   []*ir.Condition
	bound       boundSet
	unconnected []*ir.Condition
}

func (r *Reorderer) order(p *ir.Production, list []*ir.Condition, roots []*symtab.Symbol, bound boundSet, reqs map[*ir.Condition][]*symtab.Symbol, reorderNCCs bool) ([]*ir.Condition, error) {
	pl := &planner{
		r:         r,
		roots:     roots,
		positive:  bound.clone(),
		reqs:      make(map[*ir.Condition][]*symtab.Symbol),
		index:     make(map[*ir.Condition]int, len(list)),
		remaining: slices.Clone(list),
		bound:     bound.clone(),
	}
	for i, c := range list {
		pl.index[c] = i
		pl.positive.bindCondition(c)
	}
	// A relational referent only gates a condition when something else can
	// bind it.
	for c, vars := range reqs {
		own := make(boundSet)
		own.bindCondition(c)
		for _, v := range vars {
			if pl.positive[v] && !own[v] {
				pl.reqs[c] = append(pl.reqs[c], v)
			}
		}
	}

	out := make([]*ir.Condition, 0, len(list))
	for len(pl.remaining) > 0 {
		chosen, cost := pl.next()
		if cost >= MaxCost {
			pl.unconnected = append(pl.unconnected, chosen)
		}
		if chosen.Kind == ir.ConjunctiveNegation && reorderNCCs {
			nccRoots := collectRoots(chosen.NCC, pl.bound)
			sub, err := r.reorderConditionList(p, chosen.NCC, nccRoots, pl.bound, true)
			if err != nil {
				return nil, err
			}
			chosen.NCC = sub
		}
		pl.bound.bindCondition(chosen)
		out = append(out, chosen)
		pl.remaining = slices.DeleteFunc(pl.remaining, func(c *ir.Condition) bool { return c == chosen })
	}

	if len(pl.unconnected) > 0 {
		return nil, &Failure{
			Code:       CodeUnconnected,
			Production: p.Name,
			Message:    "conditions are not connected to a goal or impasse",
			Conditions: ir.RenderConditions(pl.unconnected),
		}
	}
	return out, nil
}

// next picks the cheapest remaining condition and returns it with its cost.
func (pl *planner) next() (*ir.Condition, int) {
	type candidate struct {
		c    *ir.Condition
		cost int
	}
	rootsLeft := pl.rootsLeft(pl.bound)
	var cands []candidate
	for _, c := range pl.remaining {
		if cost, ok := pl.cost(c, pl.bound, rootsLeft); ok {
			cands = append(cands, candidate{c, cost})
		}
	}
	if len(cands) == 0 {
		// Only negations that can never become ready are left.
		return pl.remaining[0], MaxCost
	}

	minCost := cands[0].cost
	for _, cd := range cands[1:] {
		minCost = min(minCost, cd.cost)
	}
	var tied []*ir.Condition
	for _, cd := range cands {
		if cd.cost == minCost {
			tied = append(tied, cd.c)
		}
	}
	if len(tied) == 1 {
		return tied[0], minCost
	}
	return pl.breakTie(tied), minCost
}

// breakTie prefers the candidate that makes the next step cheapest, then
// the canonical key of its attribute and value, then original position.
func (pl *planner) breakTie(tied []*ir.Condition) *ir.Condition {
	best := tied[0]
	bestLook := pl.lookahead(best)
	for _, c := range tied[1:] {
		look := pl.lookahead(c)
		switch {
		case look < bestLook:
			best, bestLook = c, look
		case look == bestLook && pl.less(c, best):
			best = c
		}
	}
	return best
}

// lookahead returns the cheapest cost among the other remaining conditions
// after tentatively binding c.
func (pl *planner) lookahead(c *ir.Condition) int {
	b := pl.bound.clone()
	b.bindCondition(c)
	rootsLeft := pl.rootsLeft(b)
	best := MaxCost
	others := 0
	for _, o := range pl.remaining {
		if o == c {
			continue
		}
		others++
		if cost, ok := pl.cost(o, b, rootsLeft); ok && cost < best {
			best = cost
		}
	}
	if others == 0 {
		return 0
	}
	return best
}

func (pl *planner) less(a, b *ir.Condition) bool {
	ka, kb := canonicalKey(a), canonicalKey(b)
	if ka != kb {
		if ka[0] != kb[0] {
			return ka[0] < kb[0]
		}
		return ka[1] < kb[1]
	}
	return pl.index[a] < pl.index[b]
}

// canonicalKey hashes a condition's attribute and value equality symbols.
// Every variable hashes alike, so the key is invariant under renaming.
func canonicalKey(c *ir.Condition) [2]uint64 {
	if c.Kind == ir.ConjunctiveNegation {
		return [2]uint64{}
	}
	var key [2]uint64
	if s := ir.EqualitySymbol(c.Attr); s != nil {
		key[0] = s.Hash()
	}
	if s := ir.EqualitySymbol(c.Value); s != nil {
		key[1] = s.Hash()
	}
	return key
}

func (pl *planner) rootsLeft(bound boundSet) boundSet {
	out := make(boundSet, len(pl.roots))
	for _, v := range pl.roots {
		if !bound[v] {
			out[v] = true
		}
	}
	return out
}

// cost estimates the branching of matching c next. ok is false for a
// negation that is not ready yet.
func (pl *planner) cost(c *ir.Condition, bound, rootsLeft boundSet) (cost int, ok bool) {
	switch c.Kind {
	case ir.PositiveCondition:
		for _, v := range pl.reqs[c] {
			if !bound[v] {
				return MaxCost, true
			}
		}
		id := ir.EqualitySymbol(c.ID)
		if !bound.covers(id) && !rootsLeft[id] {
			return MaxCost, true
		}
		cost = 1
		attr := ir.EqualitySymbol(c.Attr)
		attrBound := bound.covers(attr)
		if !attrBound {
			cost *= AttributeFactor
		}
		if value := ir.EqualitySymbol(c.Value); !bound.covers(value) && !rootsLeft[value] {
			factor := ValueFactor
			if attrBound {
				factor *= pl.r.weight(attr)
			}
			cost *= factor
			if c.Acceptable {
				cost *= AcceptableFactor
			}
		}
		return cost, true

	case ir.NegativeCondition:
		if !pl.ready(c, bound) {
			return 0, false
		}
		if !bound.covers(ir.EqualitySymbol(c.ID)) {
			return MaxCost, true
		}
		return 0, true

	default:
		if !pl.ready(c, bound) {
			return 0, false
		}
		return 0, true
	}
}

// ready reports whether every variable a negation shares with the positive
// conditions is already bound.
func (pl *planner) ready(c *ir.Condition, bound boundSet) bool {
	ok := true
	c.Variables(func(v *symtab.Symbol) {
		if pl.positive[v] && !bound[v] {
			ok = false
		}
	})
	for _, v := range pl.reqs[c] {
		if !bound[v] {
			ok = false
		}
	}
	return ok
}

func (r *Reorderer) weight(attr *symtab.Symbol) int {
	if attr == nil || attr.Kind() != symtab.StrConstantKind || r.branching == nil {
		return 1
	}
	if w, ok := r.branching[attr.Str()]; ok && w > 0 {
		return w
	}
	return 1
}
