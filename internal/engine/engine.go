package engine

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/registry"
	"github.com/roach88/prodsys/internal/symtab"
)

// WorkingMemory is where the engine installs preferences. Both calls may
// happen while a firing is in progress.
type WorkingMemory interface {
	AddPreference(pref *ir.Preference) error
	RemovePreference(pref *ir.Preference)
}

// SupportMode selects how productions without a support declaration are
// classified.
type SupportMode uint8

const (
	// SupportAutomatic derives support from the operator tests of the
	// matched conditions.
	SupportAutomatic SupportMode = iota
	// SupportInstantiation gives every preference i-support.
	SupportInstantiation
	// SupportOperator gives every preference o-support.
	SupportOperator
)

// String returns the configuration name of the mode.
func (m SupportMode) String() string {
	switch m {
	case SupportInstantiation:
		return "i-support"
	case SupportOperator:
		return "o-support"
	}
	return "automatic"
}

// ParseSupportMode maps a configuration name to a mode.
func ParseSupportMode(s string) (SupportMode, error) {
	switch s {
	case "", "automatic":
		return SupportAutomatic, nil
	case "i-support":
		return SupportInstantiation, nil
	case "o-support":
		return SupportOperator, nil
	}
	return 0, fmt.Errorf("unknown support mode %q", s)
}

// Engine runs the instantiation lifecycle.
//
// INVARIANTS:
//   - A (production, token) pair has at most one instantiation in the
//     match set
//   - An instantiation is deallocated only when it is out of the match set
//     and owns no preferences
//   - A production's reference count is at least its live instantiations
//     plus its registry membership
type Engine struct {
	syms   *symtab.Table
	reg    *registry.Registry
	mem    WorkingMemory
	clock  Sequencer
	logger *slog.Logger
	out    io.Writer

	supportMode SupportMode
	listeners   []Listener

	// instantiations in the match set by token key
	byKey map[string]*ir.Instantiation

	// preferences per match goal
	goalPrefs map[*symtab.Symbol][]*ir.Preference

	newThisCycle []*ir.Instantiation
	live         int
	halted       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the source of instantiation ids.
func WithClock(clock Sequencer) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithOutput sets where RHS write calls send text.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

// WithSupportMode sets the mode for productions without a declaration.
func WithSupportMode(mode SupportMode) Option {
	return func(e *Engine) {
		e.supportMode = mode
	}
}

// WithListener adds a lifecycle listener.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, l)
	}
}

// New creates an engine that fires productions from reg into mem.
func New(syms *symtab.Table, reg *registry.Registry, mem WorkingMemory, opts ...Option) *Engine {
	e := &Engine{
		syms:      syms,
		reg:       reg,
		mem:       mem,
		clock:     NewClock(),
		logger:    slog.Default(),
		out:       io.Discard,
		byKey:     make(map[string]*ir.Instantiation),
		goalPrefs: make(map[*symtab.Symbol][]*ir.Preference),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddListener adds a lifecycle listener after construction.
func (e *Engine) AddListener(l Listener) {
	e.listeners = append(e.listeners, l)
}

// RemoveListener detaches a listener added earlier.
func (e *Engine) RemoveListener(l Listener) {
	e.listeners = slices.DeleteFunc(e.listeners, func(x Listener) bool { return x == l })
}

// Halted reports whether a halt function has run.
func (e *Engine) Halted() bool {
	return e.halted
}

// Live returns the number of instantiations not yet deallocated.
func (e *Engine) Live() int {
	return e.live
}

// MatchSet returns the instantiations in the match set, ordered by id.
func (e *Engine) MatchSet() []*ir.Instantiation {
	out := make([]*ir.Instantiation, 0, len(e.byKey))
	for _, inst := range e.byKey {
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, b *ir.Instantiation) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Lookup returns the instantiation in the match set for (p, tok).
func (e *Engine) Lookup(p *ir.Production, tok ir.Token) *ir.Instantiation {
	return e.byKey[ir.TokenKey(p, tok)]
}

// GoalPreferences returns the preferences whose match goal is goal.
func (e *Engine) GoalPreferences(goal *symtab.Symbol) []*ir.Preference {
	return slices.Clone(e.goalPrefs[goal])
}

// NewThisCycle returns the instantiations created since the last EndCycle.
func (e *Engine) NewThisCycle() []*ir.Instantiation {
	return slices.Clone(e.newThisCycle)
}

// EndCycle closes a decision cycle.
func (e *Engine) EndCycle() {
	for _, inst := range e.newThisCycle {
		inst.NewThisCycle = false
	}
	e.newThisCycle = e.newThisCycle[:0]
}
