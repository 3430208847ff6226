package ir

import (
	"container/list"

	"github.com/roach88/prodsys/internal/symtab"
)

// NoMatchGoalLevel is the level of an instantiation whose conditions test no
// goal or impasse identifier.
const NoMatchGoalLevel = 32767

// InstState is the lifecycle state of an instantiation.
type InstState uint8

const (
	// StateBuilding covers condition capture and action execution.
	StateBuilding InstState = iota + 1
	// StateInMatchSet means the supporting token is still matched.
	StateInMatchSet
	// StateRetracted means the token is gone but preferences remain.
	StateRetracted
	// StatePendingDeletion means the instantiation sits on a deallocation
	// worklist.
	StatePendingDeletion
	// StateDeallocated is terminal.
	StateDeallocated
)

// String returns the state name.
func (s InstState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateInMatchSet:
		return "in-match-set"
	case StateRetracted:
		return "retracted"
	case StatePendingDeletion:
		return "pending-deletion"
	case StateDeallocated:
		return "deallocated"
	}
	return "unknown"
}

// InstCondition records how one top-level condition was satisfied.
// WME, Level and Trace are set for positive conditions only.
type InstCondition struct {
	Cond  *Condition
	WME   *WME
	Level int

	// Trace is the preference that put WME in memory. The condition holds
	// a reference on it until the instantiation is deallocated.
	Trace *Preference
}

// Instantiation is one concrete match of one production.
type Instantiation struct {
	ID    uint64
	Prod  *Production // nil for architecture instantiations
	Token Token
	Key   string

	Conds []InstCondition
	Prefs []*Preference // generated and not yet deallocated

	MatchGoal      *symtab.Symbol
	MatchGoalLevel int

	State        InstState
	NewThisCycle bool

	// ProdElem is the instantiation's entry in Prod.Instantiations while
	// it is in the match set.
	ProdElem *list.Element
}

// Name returns the production name, or "architecture" when there is none.
func (i *Instantiation) Name() string {
	if i.Prod == nil {
		return "architecture"
	}
	return i.Prod.Name
}

// InMatchSet reports whether the supporting token is still matched.
func (i *Instantiation) InMatchSet() bool {
	return i.State == StateInMatchSet || i.State == StateBuilding
}

// RemovePref unlinks p from the generated list. It reports whether p was
// present.
func (i *Instantiation) RemovePref(p *Preference) bool {
	for idx, q := range i.Prefs {
		if q == p {
			copy(i.Prefs[idx:], i.Prefs[idx+1:])
			i.Prefs[len(i.Prefs)-1] = nil
			i.Prefs = i.Prefs[:len(i.Prefs)-1]
			return true
		}
	}
	return false
}
