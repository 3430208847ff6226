package ir

import (
	"container/list"
	"fmt"

	"github.com/roach88/prodsys/internal/symtab"
)

// ProductionType classifies where a production came from.
type ProductionType uint8

const (
	UserProduction ProductionType = iota + 1
	DefaultProduction
	ChunkProduction
	JustificationProduction
	TemplateProduction
)

var productionTypeNames = map[ProductionType]string{
	UserProduction:          "user",
	DefaultProduction:       "default",
	ChunkProduction:         "chunk",
	JustificationProduction: "justification",
	TemplateProduction:      "template",
}

// ProductionTypes lists every type in catalog order.
var ProductionTypes = []ProductionType{
	UserProduction, DefaultProduction, ChunkProduction, JustificationProduction, TemplateProduction,
}

// String returns the type name.
func (t ProductionType) String() string {
	if s, ok := productionTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseProductionType maps a name to a type. The empty name is user.
func ParseProductionType(s string) (ProductionType, error) {
	if s == "" {
		return UserProduction, nil
	}
	for t, name := range productionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown production type %q", s)
}

// SupportDeclaration is a production's explicit support override.
type SupportDeclaration uint8

const (
	SupportUnspecified SupportDeclaration = iota
	DeclaredISupport
	DeclaredOSupport
)

// String returns the declaration as written in rule files.
func (d SupportDeclaration) String() string {
	switch d {
	case DeclaredISupport:
		return "i"
	case DeclaredOSupport:
		return "o"
	}
	return ""
}

// ParseSupportDeclaration maps "i"/"o"/"" to a declaration.
func ParseSupportDeclaration(s string) (SupportDeclaration, error) {
	switch s {
	case "":
		return SupportUnspecified, nil
	case "i", "i-support":
		return DeclaredISupport, nil
	case "o", "o-support":
		return DeclaredOSupport, nil
	}
	return 0, fmt.Errorf("unknown support declaration %q", s)
}

// Production is a compiled rule.
//
// The reference count is one for registry membership plus one per
// instantiation that has not been deallocated. Instantiations lists the
// instantiations currently in the match set.
type Production struct {
	Name    string
	Doc     string
	Type    ProductionType
	Support SupportDeclaration

	Conds   []*Condition
	Actions []*Action

	// UnboundVars names the RHS-only variables; Unbound.Index points here.
	UnboundVars []*symtab.Symbol

	Fingerprint string

	Instantiations *list.List

	FiringCount    uint64
	FailureCount   uint64
	DuplicateCount uint64

	Excised bool

	refs int
}

// AddRef takes a reference.
func (p *Production) AddRef() {
	p.refs++
}

// RemoveRef releases a reference and returns the remaining count.
func (p *Production) RemoveRef() int {
	if p.refs <= 0 {
		panic(fmt.Sprintf("ir: production %s released with refcount %d", p.Name, p.refs))
	}
	p.refs--
	return p.refs
}

// RefCount returns the number of outstanding references.
func (p *Production) RefCount() int {
	return p.refs
}

// LiveInstantiations returns the number of instantiations in the match set.
func (p *Production) LiveInstantiations() int {
	if p.Instantiations == nil {
		return 0
	}
	return p.Instantiations.Len()
}

// EachInstantiation calls fn for every instantiation in the match set, in
// firing order. fn must not unlink instantiations.
func (p *Production) EachInstantiation(fn func(*Instantiation)) {
	if p.Instantiations == nil {
		return
	}
	for e := p.Instantiations.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*Instantiation))
	}
}

// LocationSymbol returns the variable a Location stands for: the equality
// symbol of the referenced field of the referenced condition.
func (p *Production) LocationSymbol(loc Location) *symtab.Symbol {
	idx := len(p.Conds) - 1 - loc.LevelsUp
	if idx < 0 || idx >= len(p.Conds) {
		return nil
	}
	return EqualitySymbol(p.Conds[idx].FieldTest(loc.Field))
}

// UnboundSymbol returns the variable an Unbound index stands for.
func (p *Production) UnboundSymbol(u Unbound) *symtab.Symbol {
	if u.Index < 0 || u.Index >= len(p.UnboundVars) {
		return nil
	}
	return p.UnboundVars[u.Index]
}

// Release gives back every symbol reference the production holds.
func (p *Production) Release(syms *symtab.Table) {
	ReleaseConditions(syms, p.Conds)
	ReleaseActions(syms, p.Actions)
	for _, v := range p.UnboundVars {
		syms.Release(v)
	}
	p.Conds = nil
	p.Actions = nil
	p.UnboundVars = nil
}
