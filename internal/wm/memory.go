// Package wm is a reference working memory: input facts, preference slots,
// working-memory elements and the goal stack.
//
// Elements exist for three reasons. Input facts are added and removed
// directly. Preferences are grouped into slots by (identifier, attribute);
// a value is in memory while some acceptable or require preference supports
// it and no reject preference opposes it. On a goal's operator slot the
// supported values appear as acceptable-preference elements instead, and
// the selected operator is installed by SelectOperator.
package wm

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// OperatorAttr names the attribute of a goal's operator slot.
const OperatorAttr = ir.OperatorAttr

type slotKey struct {
	id, attr *symtab.Symbol
}

type elemKey struct {
	id, attr, value *symtab.Symbol
	acceptable      bool
}

type entry struct {
	wme        *ir.WME
	fact       bool
	supporters []*ir.Preference
}

// Memory is not safe for concurrent use.
type Memory struct {
	syms   *symtab.Table
	logger *slog.Logger

	timetag uint64
	entries map[elemKey]*entry
	slots   map[slotKey][]*ir.Preference
	goals   []*symtab.Symbol

	// elements each slot currently supports
	slotElems map[slotKey][]elemKey

	// selected operator element per goal
	selected map[*symtab.Symbol]*ir.WME
}

// Option configures a Memory.
type Option func(*Memory)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		m.logger = logger
	}
}

// New creates an empty memory.
func New(syms *symtab.Table, opts ...Option) *Memory {
	m := &Memory{
		syms:      syms,
		logger:    slog.Default(),
		entries:   make(map[elemKey]*entry),
		slots:     make(map[slotKey][]*ir.Preference),
		slotElems: make(map[slotKey][]elemKey),
		selected:  make(map[*symtab.Symbol]*ir.WME),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ============================================================================
// Input facts
// ============================================================================

// AddFact adds an input element. Adding a triple that is already an input
// fact returns the existing element.
func (m *Memory) AddFact(id, attr, value *symtab.Symbol) (*ir.WME, error) {
	if !id.IsIdentifier() {
		return nil, fmt.Errorf("add fact: %s is not an identifier", id)
	}
	key := elemKey{id: id, attr: attr, value: value}
	e := m.entries[key]
	if e == nil {
		e = m.create(key, nil)
	}
	e.fact = true
	return e.wme, nil
}

// RemoveFact removes an input element. Elements still supported by
// preferences stay in memory.
func (m *Memory) RemoveFact(w *ir.WME) {
	key := elemKey{id: w.ID, attr: w.Attr, value: w.Value, acceptable: w.Acceptable}
	e := m.entries[key]
	if e == nil || e.wme != w || !e.fact {
		return
	}
	e.fact = false
	if len(e.supporters) == 0 {
		m.destroy(key, e)
	}
}

// ============================================================================
// Preferences
// ============================================================================

// AddPreference installs pref into its slot.
func (m *Memory) AddPreference(pref *ir.Preference) error {
	if !pref.ID.IsIdentifier() {
		return fmt.Errorf("add preference %s: id is not an identifier", pref)
	}
	key := slotKey{id: pref.ID, attr: pref.Attr}
	m.slots[key] = append(m.slots[key], pref)
	m.recompute(key)
	return nil
}

// RemovePreference takes pref out of its slot. Removing a preference that
// is not installed is a no-op.
func (m *Memory) RemovePreference(pref *ir.Preference) {
	key := slotKey{id: pref.ID, attr: pref.Attr}
	prefs := m.slots[key]
	idx := slices.Index(prefs, pref)
	if idx < 0 {
		return
	}
	prefs = slices.Delete(prefs, idx, idx+1)
	if len(prefs) == 0 {
		delete(m.slots, key)
	} else {
		m.slots[key] = prefs
	}
	m.recompute(key)
}

// Preferences returns the preferences in the (id, attr) slot in arrival
// order.
func (m *Memory) Preferences(id, attr *symtab.Symbol) []*ir.Preference {
	return slices.Clone(m.slots[slotKey{id: id, attr: attr}])
}

func (m *Memory) isContextSlot(key slotKey) bool {
	return key.id.IsGoal() && ir.IsOperatorAttr(key.attr)
}

// recompute brings the elements of one slot in line with its preferences.
func (m *Memory) recompute(key slotKey) {
	acceptable := m.isContextSlot(key)

	supporters := make(map[*symtab.Symbol][]*ir.Preference)
	rejected := make(map[*symtab.Symbol]bool)
	var values []*symtab.Symbol
	for _, p := range m.slots[key] {
		switch p.Type {
		case ir.AcceptablePref, ir.RequirePref:
			if supporters[p.Value] == nil {
				values = append(values, p.Value)
			}
			supporters[p.Value] = append(supporters[p.Value], p)
		case ir.RejectPref:
			rejected[p.Value] = true
		}
	}

	live := make(map[elemKey]bool, len(values))
	var tracked []elemKey
	for _, v := range values {
		if rejected[v] {
			continue
		}
		ek := elemKey{id: key.id, attr: key.attr, value: v, acceptable: acceptable}
		e := m.entries[ek]
		if e == nil {
			e = m.create(ek, nil)
		}
		e.supporters = supporters[v]
		e.wme.Pref = e.supporters[0]
		live[ek] = true
		tracked = append(tracked, ek)
	}

	for _, ek := range m.slotElems[key] {
		if live[ek] {
			continue
		}
		e := m.entries[ek]
		if e == nil {
			continue
		}
		e.supporters = nil
		e.wme.Pref = nil
		if !e.fact {
			m.destroy(ek, e)
		}
	}
	if len(tracked) == 0 {
		delete(m.slotElems, key)
	} else {
		m.slotElems[key] = tracked
	}

	if acceptable {
		m.checkSelection(key.id)
	}
}

func (m *Memory) create(key elemKey, pref *ir.Preference) *entry {
	m.timetag++
	w := &ir.WME{
		ID:         m.syms.Retain(key.id),
		Attr:       m.syms.Retain(key.attr),
		Value:      m.syms.Retain(key.value),
		Acceptable: key.acceptable,
		Timetag:    m.timetag,
		Pref:       pref,
	}
	e := &entry{wme: w}
	m.entries[key] = e
	m.logger.Debug("element added", "wme", w.String())
	return e
}

func (m *Memory) destroy(key elemKey, e *entry) {
	delete(m.entries, key)
	m.logger.Debug("element removed", "wme", e.wme.String())
	e.wme.Pref = nil
	m.syms.Release(e.wme.ID)
	m.syms.Release(e.wme.Attr)
	m.syms.Release(e.wme.Value)
}

// ============================================================================
// Queries
// ============================================================================

// WMEs returns every element in timetag order.
func (m *Memory) WMEs() []*ir.WME {
	out := make([]*ir.WME, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.wme)
	}
	slices.SortFunc(out, func(a, b *ir.WME) int { return cmp.Compare(a.Timetag, b.Timetag) })
	return out
}

// Find returns the non-acceptable element (id ^attr value), or nil.
func (m *Memory) Find(id, attr, value *symtab.Symbol) *ir.WME {
	if e := m.entries[elemKey{id: id, attr: attr, value: value}]; e != nil {
		return e.wme
	}
	return nil
}

// Contains reports whether w is still in memory.
func (m *Memory) Contains(w *ir.WME) bool {
	e := m.entries[elemKey{id: w.ID, attr: w.Attr, value: w.Value, acceptable: w.Acceptable}]
	return e != nil && e.wme == w
}

// Len returns the number of elements.
func (m *Memory) Len() int {
	return len(m.entries)
}
