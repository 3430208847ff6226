// Package rhs encodes and evaluates the right-hand sides of productions.
//
// Encode runs once when a production is registered. It resolves function
// names against a Library and rewrites variables: a variable bound on the
// left-hand side becomes a Location that re-reads the matched token, and a
// variable that appears only on the right-hand side becomes an Unbound
// index into the per-firing table of generated identifiers.
//
// A Context carries the state of one firing and evaluates encoded values.
package rhs

import (
	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Encode rewrites the actions of a reordered production in place. The
// variable references held by rewritten literals are released, except for
// the first occurrence of each RHS-only variable, whose reference moves to
// p.UnboundVars.
func Encode(syms *symtab.Table, p *ir.Production, lib *Library) error {
	enc := &encoder{
		syms:      syms,
		prod:      p,
		lib:       lib,
		locations: locations(p.Conds),
		unbound:   make(map[*symtab.Symbol]int),
	}
	for i, v := range p.UnboundVars {
		enc.unbound[v] = i
	}

	for _, a := range p.Actions {
		if a.Kind == ir.FuncCallAction {
			call, ok := a.Value.(*ir.FuncCall)
			if !ok {
				return &EncodeError{Production: p.Name, Message: "function-call action without a call"}
			}
			if err := enc.resolve(call, true); err != nil {
				return err
			}
		}
		for _, vp := range a.ValuePtrs() {
			nv, err := enc.value(*vp)
			if err != nil {
				return err
			}
			*vp = nv
		}
	}
	return nil
}

// locations maps every variable equality-tested by a top-level positive
// condition to the first place it is bound.
func locations(conds []*ir.Condition) map[*symtab.Symbol]ir.Location {
	out := make(map[*symtab.Symbol]ir.Location)
	for i, c := range conds {
		if c.Kind != ir.PositiveCondition {
			continue
		}
		c.EqualityVariables(func(f ir.Field, v *symtab.Symbol) {
			if _, ok := out[v]; !ok {
				out[v] = ir.Location{LevelsUp: len(conds) - 1 - i, Field: f}
			}
		})
	}
	return out
}

type encoder struct {
	syms      *symtab.Table
	prod      *ir.Production
	lib       *Library
	locations map[*symtab.Symbol]ir.Location
	unbound   map[*symtab.Symbol]int
}

func (e *encoder) value(v ir.Value) (ir.Value, error) {
	switch vv := v.(type) {
	case ir.Literal:
		if !vv.Sym.IsVariable() {
			return vv, nil
		}
		if loc, ok := e.locations[vv.Sym]; ok {
			e.syms.Release(vv.Sym)
			return loc, nil
		}
		if idx, ok := e.unbound[vv.Sym]; ok {
			e.syms.Release(vv.Sym)
			return ir.Unbound{Index: idx}, nil
		}
		idx := len(e.prod.UnboundVars)
		e.prod.UnboundVars = append(e.prod.UnboundVars, vv.Sym)
		e.unbound[vv.Sym] = idx
		return ir.Unbound{Index: idx}, nil
	case *ir.FuncCall:
		if vv.Fn == nil {
			if err := e.resolve(vv, false); err != nil {
				return nil, err
			}
		}
		for i, arg := range vv.Args {
			na, err := e.value(arg)
			if err != nil {
				return nil, err
			}
			vv.Args[i] = na
		}
		return vv, nil
	}
	return v, nil
}

// resolve binds a call to its library function and checks arity and
// placement.
func (e *encoder) resolve(call *ir.FuncCall, standalone bool) error {
	fn, ok := e.lib.Lookup(call.Name)
	if !ok {
		return &EncodeError{Production: e.prod.Name, Function: call.Name, Message: "unknown function"}
	}
	if !fn.AcceptsArgs(len(call.Args)) {
		return &EncodeError{Production: e.prod.Name, Function: call.Name, Message: "wrong number of arguments"}
	}
	if standalone && !fn.Standalone {
		return &EncodeError{Production: e.prod.Name, Function: call.Name, Message: "cannot be used as a standalone action"}
	}
	if !standalone && !fn.Valued {
		return &EncodeError{Production: e.prod.Name, Function: call.Name, Message: "does not return a value"}
	}
	call.Fn = fn
	return nil
}
