// Package agent drives decision cycles over the instantiation engine.
//
// An Agent owns one symbol table and the components built on it: the
// registry, working memory, match network and engine. LoadFile compiles,
// validates, reorders and registers rule files. Run repeats decisions
// until nothing changes:
//
//  1. pending inputs are applied to working memory
//  2. elaboration waves run until the match set stops changing; each wave
//     retracts before it asserts and counts against the elaboration quota
//  3. an operator is selected on the bottom goal
//
// A run also stops on halt, on the decision limit, on a quota overrun or
// when its context is cancelled. The context is checked between waves, so
// a wave always completes.
//
// Not safe for concurrent use, except Enqueue which may be called from any
// goroutine.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/prodsys/internal/compiler"
	"github.com/roach88/prodsys/internal/config"
	"github.com/roach88/prodsys/internal/engine"
	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/match"
	"github.com/roach88/prodsys/internal/registry"
	"github.com/roach88/prodsys/internal/reorder"
	"github.com/roach88/prodsys/internal/rhs"
	"github.com/roach88/prodsys/internal/store"
	"github.com/roach88/prodsys/internal/symtab"
	"github.com/roach88/prodsys/internal/wm"
)

// Agent is a production system with its working memory.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	clock  engine.Sequencer
	tokens RunTokenGenerator

	store     *store.Store
	ownsStore bool
	sources   []string

	syms      *symtab.Table
	lib       *rhs.Library
	reg       *registry.Registry
	mem       *wm.Memory
	net       *match.Network
	eng       *engine.Engine
	reorderer *reorder.Reorderer
	quota     *engine.QuotaEnforcer
	loops     *LoopDetector
	inputs    *inputQueue
	top       *symtab.Symbol

	extra []engine.Listener

	// per-run state
	result  *Result
	rejects []*ir.Preference
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithOutput sets where RHS write calls send text.
func WithOutput(w io.Writer) Option {
	return func(a *Agent) {
		a.out = w
	}
}

// WithClock sets the source of instantiation ids.
func WithClock(clock engine.Sequencer) Option {
	return func(a *Agent) {
		a.clock = clock
	}
}

// WithRunTokens sets the run token generator.
func WithRunTokens(gen RunTokenGenerator) Option {
	return func(a *Agent) {
		a.tokens = gen
	}
}

// WithStore records every run in s. The caller keeps ownership of s. It
// overrides the trace_db setting.
func WithStore(s *store.Store) Option {
	return func(a *Agent) {
		a.store = s
	}
}

// WithListener adds an engine listener.
func WithListener(l engine.Listener) Option {
	return func(a *Agent) {
		a.extra = append(a.extra, l)
	}
}

// New builds an agent from cfg. A nil cfg uses config.Default. When
// cfg.TraceDB is set and no store was given, New opens it and Close closes
// it.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	a := &Agent{
		cfg:    cfg,
		logger: slog.Default(),
		out:    io.Discard,
		clock:  engine.NewClock(),
		tokens: UUIDv7Generator{},
		loops:  NewLoopDetector(),
		inputs: newInputQueue(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil && cfg.TraceDB != "" {
		s, err := store.Open(cfg.TraceDB)
		if err != nil {
			return nil, fmt.Errorf("open trace store: %w", err)
		}
		a.store = s
		a.ownsStore = true
	}

	a.syms = symtab.NewTable()
	a.lib = rhs.NewLibrary()
	a.reg = registry.New(a.syms, a.lib, registry.WithLogger(a.logger))
	a.mem = wm.New(a.syms, wm.WithLogger(a.logger))
	a.net = match.New(a.mem, match.WithLogger(a.logger))
	a.reorderer = reorder.New(a.syms,
		reorder.WithLogger(a.logger),
		reorder.WithBranchingFactors(cfg.Branching()))
	a.quota = engine.NewQuotaEnforcer(cfg.MaxElaborations)

	engOpts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithClock(a.clock),
		engine.WithOutput(a.out),
		engine.WithSupportMode(cfg.Support()),
		engine.WithListener(hooks{a}),
	}
	for _, l := range a.extra {
		engOpts = append(engOpts, engine.WithListener(l))
	}
	a.eng = engine.New(a.syms, a.reg, a.mem, engOpts...)
	a.top = a.mem.PushGoal()
	return a, nil
}

// Close stops accepting input and closes a trace store opened by New.
func (a *Agent) Close() error {
	a.inputs.Close()
	if a.ownsStore {
		a.ownsStore = false
		return a.store.Close()
	}
	return nil
}

// Symbols returns the agent's symbol table.
func (a *Agent) Symbols() *symtab.Table { return a.syms }

// Registry returns the production registry.
func (a *Agent) Registry() *registry.Registry { return a.reg }

// Memory returns working memory.
func (a *Agent) Memory() *wm.Memory { return a.mem }

// Engine returns the instantiation engine.
func (a *Agent) Engine() *engine.Engine { return a.eng }

// Library returns the RHS function library. Functions must be registered
// before the rules that call them are loaded.
func (a *Agent) Library() *rhs.Library { return a.lib }

// Store returns the trace store, or nil when runs are not recorded.
func (a *Agent) Store() *store.Store { return a.store }

// TopGoal returns the top goal identifier.
func (a *Agent) TopGoal() *symtab.Symbol { return a.top }

// ============================================================================
// Loading
// ============================================================================

// LoadResult describes one loaded rule file.
type LoadResult struct {
	Loaded     []string
	Duplicates []string
	Warnings   []compiler.CycleWarning
}

// LoadFile compiles and registers the productions in a CUE rule file.
func (a *Agent) LoadFile(path string) (*LoadResult, error) {
	prods, err := compiler.CompileFile(a.syms, path)
	if err != nil {
		return nil, err
	}
	return a.load(path, prods)
}

// LoadSource is LoadFile for rule text already in memory.
func (a *Agent) LoadSource(filename string, src []byte) (*LoadResult, error) {
	prods, err := compiler.CompileSource(a.syms, filename, src)
	if err != nil {
		return nil, err
	}
	return a.load(filename, prods)
}

// load validates and reorders every production before registering any of
// them, so a file either loads as a whole or not at all. Productions
// identical to registered ones are skipped.
func (a *Agent) load(source string, prods []*ir.Production) (*LoadResult, error) {
	releaseAll := func(ps []*ir.Production) {
		for _, p := range ps {
			p.Release(a.syms)
		}
	}

	if verrs := compiler.Validate(prods); len(verrs) > 0 {
		releaseAll(prods)
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("load %s: %w", source, errors.Join(errs...))
	}
	for _, p := range prods {
		if _, err := a.reg.Lookup(p.Name); err == nil {
			releaseAll(prods)
			return nil, fmt.Errorf("load %s: %s: %w", source, p.Name, registry.ErrNameInUse)
		}
	}

	res := &LoadResult{Warnings: compiler.AnalyzeCycles(prods)}
	for _, w := range res.Warnings {
		a.logger.Warn("rule cycle", "level", w.Level, "cycle", strings.Join(w.Path, " -> "), "source", source)
	}

	params := reorder.Params{ReorderNCCs: a.cfg.NCCs()}
	for i, p := range prods {
		if err := a.reorderer.Reorder(p, params); err != nil {
			releaseAll(prods)
			return nil, fmt.Errorf("load %s: production %d: %w", source, i, err)
		}
	}

	for i, p := range prods {
		got, err := a.reg.Register(p)
		switch {
		case errors.Is(err, registry.ErrDuplicate):
			res.Duplicates = append(res.Duplicates, p.Name)
			p.Release(a.syms)
			continue
		case err != nil:
			releaseAll(prods[i:])
			return res, fmt.Errorf("load %s: %w", source, err)
		}
		a.net.Add(got)
		res.Loaded = append(res.Loaded, got.Name)
	}
	a.sources = append(a.sources, source)

	a.logger.Info("rules loaded",
		"source", source,
		"loaded", len(res.Loaded),
		"duplicates", len(res.Duplicates))
	return res, nil
}

// Excise removes the named production. Its live instantiations are
// retracted first.
func (a *Agent) Excise(name string) error {
	p, err := a.reg.Lookup(name)
	if err != nil {
		return err
	}
	a.eng.Excise(p)
	return nil
}

// ErrTopGoal is returned by PopGoal when only the top goal is left.
var ErrTopGoal = errors.New("agent: cannot pop the top goal")

// SuperstateAttr links a subgoal to the goal above it.
const SuperstateAttr = "superstate"

// PushGoal creates a subgoal below the bottom goal and links it to its
// parent with an architecture preference (goal ^superstate parent).
func (a *Agent) PushGoal() *symtab.Symbol {
	parent := a.mem.BottomGoal()
	goal := a.mem.PushGoal()
	pref := &ir.Preference{
		Type:  ir.AcceptablePref,
		ID:    a.syms.Retain(goal),
		Attr:  a.syms.Str(SuperstateAttr),
		Value: a.syms.Retain(parent),
	}
	a.eng.Synthesize(goal, []*ir.Preference{pref})
	return goal
}

// PopGoal removes the bottom goal. Every preference made for it leaves
// working memory first, o-supported or not.
func (a *Agent) PopGoal() error {
	goal := a.mem.BottomGoal()
	if goal == nil || goal == a.top {
		return ErrTopGoal
	}
	name := goal.String()
	a.eng.RemoveGoal(goal)
	a.mem.PopGoal()
	a.logger.Debug("subgoal removed", "goal", name)
	return nil
}

// ============================================================================
// Input
// ============================================================================

// Enqueue schedules an input for the next decision. It returns false after
// Close. Safe for concurrent use.
func (a *Agent) Enqueue(in Input) bool {
	return a.inputs.Enqueue(in)
}

// AddFact schedules (id ^attr value) to be added.
func (a *Agent) AddFact(id, attr, value string) bool {
	return a.Enqueue(Input{Op: InputAdd, ID: id, Attr: attr, Value: value})
}

// RemoveFact schedules (id ^attr value) to be removed.
func (a *Agent) RemoveFact(id, attr, value string) bool {
	return a.Enqueue(Input{Op: InputRemove, ID: id, Attr: attr, Value: value})
}

// drainInputs applies pending inputs and returns how many changed memory.
// Inputs naming unknown identifiers are logged and dropped.
func (a *Agent) drainInputs() int {
	applied := 0
	for _, in := range a.inputs.Drain() {
		if err := a.apply(in); err != nil {
			a.logger.Warn("input dropped", "input", in.String(), "error", err)
			continue
		}
		applied++
	}
	return applied
}

func (a *Agent) apply(in Input) error {
	id := a.top
	if in.ID != "" {
		if id = a.syms.FindIdentifierName(in.ID); id == nil {
			return fmt.Errorf("unknown identifier %s", in.ID)
		}
	}
	attr := a.syms.Constant(in.Attr)
	defer a.syms.Release(attr)
	var value *symtab.Symbol
	if ref := a.syms.FindIdentifierName(in.Value); ref != nil {
		value = a.syms.Retain(ref)
	} else {
		value = a.syms.Constant(in.Value)
	}
	defer a.syms.Release(value)

	switch in.Op {
	case InputAdd:
		_, err := a.mem.AddFact(id, attr, value)
		return err
	case InputRemove:
		w := a.mem.Find(id, attr, value)
		if w == nil {
			return fmt.Errorf("no such fact")
		}
		a.mem.RemoveFact(w)
		return nil
	}
	return fmt.Errorf("unknown input op %s", in.Op)
}

// ============================================================================
// Running
// ============================================================================

// Result summarizes one Run.
type Result struct {
	RunID     string
	Decisions int
	Waves     int
	Fired     int
	Retracted int

	// Oscillations counts tokens asserted again within the decision that
	// retracted them.
	Oscillations int

	// Selected lists each newly selected operator in order.
	Selected []string

	Halted    bool
	Quiescent bool
}

// Run executes decisions until quiescence, halt or the decision limit. A
// quota overrun or cancelled context ends the run with an error; the
// result still describes the work done.
func (a *Agent) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: a.tokens.Generate()}
	a.result = res
	defer func() { a.result = nil }()

	rec, err := a.startRecording(ctx, res.RunID)
	if err != nil {
		return res, err
	}
	if rec != nil {
		a.eng.AddListener(rec)
		defer a.eng.RemoveListener(rec)
	}

	logger := a.logger.With("run_id", res.RunID)
	logger.Info("run started", "productions", a.reg.Len())

	err = a.decide(ctx, res)
	if rec != nil && rec.Err() != nil {
		logger.Warn("trace incomplete", "error", rec.Err())
	}
	if err != nil {
		logger.Warn("run stopped", "error", err, "decisions", res.Decisions)
		return res, err
	}
	logger.Info("run finished",
		"decisions", res.Decisions,
		"fired", res.Fired,
		"halted", res.Halted,
		"quiescent", res.Quiescent)
	return res, nil
}

func (a *Agent) decide(ctx context.Context, res *Result) error {
	for res.Decisions < a.cfg.MaxDecisions {
		if err := ctx.Err(); err != nil {
			return err
		}
		scope := res.RunID + "/" + strconv.Itoa(res.Decisions)
		changed := a.drainInputs() > 0

		a.quota.Reset()
		waves, err := a.elaborate(ctx, res, scope)
		a.loops.Clear(scope)
		if err != nil {
			return err
		}
		if waves > 0 {
			changed = true
		}
		a.logger.Debug("decision finished",
			"decision", res.Decisions,
			"waves", waves,
			"instantiations", len(a.eng.NewThisCycle()))
		a.eng.EndCycle()
		res.Decisions++

		if a.eng.Halted() {
			res.Halted = true
			return nil
		}
		if goal := a.mem.BottomGoal(); goal != nil {
			op, selected := a.mem.SelectOperator(goal)
			if selected {
				changed = true
				if op != nil {
					res.Selected = append(res.Selected, op.String())
					a.logger.Debug("operator selected", "goal", goal.String(), "operator", op.String())
				}
			}
		}
		if !changed && a.inputs.Len() == 0 {
			res.Quiescent = true
			return nil
		}
	}
	return nil
}

// elaborate runs waves until the match set is stable and returns how many
// waves ran.
func (a *Agent) elaborate(ctx context.Context, res *Result, scope string) (int, error) {
	waves := 0
	for {
		if err := ctx.Err(); err != nil {
			return waves, err
		}
		d := a.net.Update()
		if d.Empty() {
			return waves, nil
		}
		if err := a.quota.Check(res.RunID); err != nil {
			return waves, err
		}
		waves++
		res.Waves++

		for _, m := range d.Retracted {
			if err := a.eng.OnTokenRetracted(m.Prod, m.Token); err != nil {
				a.logger.Warn("retraction rejected", "production", m.Prod.Name, "error", err)
			}
		}
		for _, m := range d.Asserted {
			if !a.live(m.Token) {
				// Its elements went away with this wave's retractions.
				a.net.Drop(m.Key)
				continue
			}
			if a.loops.Seen(scope, m.Key) {
				res.Oscillations++
				a.logger.Warn("production matched the same token again in one decision",
					"production", m.Prod.Name,
					"run_id", res.RunID)
			}
			a.loops.Record(scope, m.Key)
			if _, err := a.eng.OnTokenMatched(m.Prod, m.Token); err != nil {
				a.logger.Warn("match rejected", "production", m.Prod.Name, "error", err)
			}
		}
		a.applyRejects()

		if a.eng.Halted() {
			return waves, nil
		}
	}
}

func (a *Agent) live(tok ir.Token) bool {
	for _, w := range tok {
		if w != nil && !a.mem.Contains(w) {
			return false
		}
	}
	return true
}

// applyRejects carries out the o-supported reject preferences fired in the
// last wave: each removes the o-supported preferences for its value and is
// then removed itself.
func (a *Agent) applyRejects() {
	rejects := a.rejects
	a.rejects = nil
	for _, r := range rejects {
		if !r.InTM {
			continue
		}
		for _, p := range a.mem.Preferences(r.ID, r.Attr) {
			if p != r && p.OSupported && p.Type != ir.RejectPref && p.Value == r.Value {
				a.eng.RemovePreference(p)
			}
		}
		a.eng.RemovePreference(r)
	}
}

func (a *Agent) startRecording(ctx context.Context, runID string) (*store.Recorder, error) {
	if a.store == nil {
		return nil, nil
	}
	hash, err := store.RulesHash(a.reg.All())
	if err != nil {
		return nil, fmt.Errorf("hash rules: %w", err)
	}
	rec, err := a.store.StartRun(ctx, ir.TraceRun{
		ID:        runID,
		Source:    strings.Join(a.sources, ","),
		RulesHash: hash,
	}, store.WithRecorderLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("start trace: %w", err)
	}
	return rec, nil
}

// hooks is the agent's own engine listener.
type hooks struct{ a *Agent }

func (h hooks) ProductionFired(inst *ir.Instantiation) {
	if h.a.result != nil {
		h.a.result.Fired++
	}
	for _, p := range inst.Prefs {
		if p.Type == ir.RejectPref && p.OSupported {
			h.a.rejects = append(h.a.rejects, p)
		}
	}
}

func (h hooks) ProductionRetracted(*ir.Instantiation) {
	if h.a.result != nil {
		h.a.result.Retracted++
	}
}

// ProductionExcised stops matching p.
func (h hooks) ProductionExcised(p *ir.Production) {
	h.a.net.Remove(p)
}

var (
	_ engine.Listener       = hooks{}
	_ engine.ExciseListener = hooks{}
)
