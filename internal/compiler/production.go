// Package compiler turns CUE rule files into unordered productions.
package compiler

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Rule files are CUE. Each production is a field of the top-level
// "production" struct:
//
//	production: "count*increment": {
//		doc:     "adds one to the counter"
//		type:    "user"        // user | default | chunk | justification | template
//		support: "o"           // optional: i | o
//		lhs: [
//			{id: "<s>", goal: true, attr: "count", value: "<n>"},
//			{id: "<s>", attr: "done", value: "*", negated: true},
//			{ncc: [{id: "<s>", attr: "stop", value: "<x>"}, {id: "<x>", attr: "now", value: "yes"}]},
//		]
//		rhs: [
//			{id: "<s>", attr: "count", value: "<n>", pref: "-"},
//			{id: "<s>", attr: "count", value: "(+ <n> 1)"},
//			{call: "(write <n> (crlf))"},
//		]
//	}
//
// Numbers may be written as CUE numbers or inside strings.

// CompileFile compiles every production in the CUE file at path.
func CompileFile(syms *symtab.Table, path string) ([]*ir.Production, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return CompileSource(syms, path, src)
}

// CompileSource compiles every production in src, in source order. On
// error no production is returned and every symbol reference taken so far
// is released.
func CompileSource(syms *symtab.Table, filename string, src []byte) ([]*ir.Production, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("production"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "production",
			Message: "no productions defined",
			Pos:     v.Pos(),
		}
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*ir.Production
	for iter.Next() {
		p, err := CompileProduction(syms, iter.Value())
		if err != nil {
			for _, done := range out {
				done.Release(syms)
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CompileProduction parses one production struct. Its name is the last
// path selector:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`production: "p1": { ... }`)
//	p, err := CompileProduction(syms, v.LookupPath(cue.ParsePath(`production."p1"`)))
//
// The result is unordered; it must go through the reorderer before it is
// registered.
func CompileProduction(syms *symtab.Table, v cue.Value) (*ir.Production, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Production{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}
	c := &compiling{syms: syms, prod: p}

	if err := c.header(v); err != nil {
		return nil, err
	}

	lhs := v.LookupPath(cue.ParsePath("lhs"))
	if !lhs.Exists() {
		return nil, c.errorf("lhs", v, "lhs is required")
	}
	conds, err := c.conditions("lhs", lhs)
	if err != nil {
		p.Release(syms)
		return nil, err
	}
	p.Conds = conds
	if len(p.Conds) == 0 {
		p.Release(syms)
		return nil, c.errorf("lhs", lhs, "at least one condition is required")
	}

	rhs := v.LookupPath(cue.ParsePath("rhs"))
	if rhs.Exists() {
		if err := c.actions(rhs); err != nil {
			p.Release(syms)
			return nil, err
		}
	}
	return p, nil
}

type compiling struct {
	syms *symtab.Table
	prod *ir.Production
}

func (c *compiling) errorf(field string, at cue.Value, format string, args ...any) error {
	return &CompileError{
		Production: c.prod.Name,
		Field:      field,
		Message:    fmt.Sprintf(format, args...),
		Pos:        at.Pos(),
	}
}

// optionalString returns the string at field, or "" when it is absent.
func (c *compiling) optionalString(v cue.Value, field string) (string, cue.Value, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", fv, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", fv, c.errorf(field, fv, "must be a string")
	}
	return s, fv, nil
}

func (c *compiling) optionalBool(v cue.Value, field, path string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, c.errorf(path+"."+field, fv, "must be a boolean")
	}
	return b, nil
}

func (c *compiling) header(v cue.Value) error {
	doc, _, err := c.optionalString(v, "doc")
	if err != nil {
		return err
	}
	c.prod.Doc = doc

	typ, tv, err := c.optionalString(v, "type")
	if err != nil {
		return err
	}
	if c.prod.Type, err = ir.ParseProductionType(typ); err != nil {
		return c.errorf("type", tv, "%v", err)
	}

	sup, sv, err := c.optionalString(v, "support")
	if err != nil {
		return err
	}
	if c.prod.Support, err = ir.ParseSupportDeclaration(sup); err != nil {
		return c.errorf("support", sv, "%v", err)
	}
	return nil
}

// conditions parses a condition list. On error the conditions parsed so
// far are released.
func (c *compiling) conditions(path string, list cue.Value) ([]*ir.Condition, error) {
	iter, err := list.List()
	if err != nil {
		return nil, c.errorf(path, list, "must be a list of conditions")
	}
	var out []*ir.Condition
	for i := 0; iter.Next(); i++ {
		cond, err := c.condition(fmt.Sprintf("%s[%d]", path, i), iter.Value())
		if err != nil {
			ir.ReleaseConditions(c.syms, out)
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func (c *compiling) condition(path string, v cue.Value) (*ir.Condition, error) {
	if v.Kind() != cue.StructKind {
		return nil, c.errorf(path, v, "condition must be a struct")
	}

	if nv := v.LookupPath(cue.ParsePath("ncc")); nv.Exists() {
		for _, f := range []string{"id", "attr", "value", "negated", "acceptable"} {
			if v.LookupPath(cue.ParsePath(f)).Exists() {
				return nil, c.errorf(path+"."+f, v, "not allowed on a conjunctive negation")
			}
		}
		sub, err := c.conditions(path+".ncc", nv)
		if err != nil {
			return nil, err
		}
		if len(sub) == 0 {
			return nil, c.errorf(path+".ncc", nv, "conjunctive negation is empty")
		}
		return &ir.Condition{Kind: ir.ConjunctiveNegation, NCC: sub}, nil
	}

	negated, err := c.optionalBool(v, "negated", path)
	if err != nil {
		return nil, err
	}
	acceptable, err := c.optionalBool(v, "acceptable", path)
	if err != nil {
		return nil, err
	}
	goal, err := c.optionalBool(v, "goal", path)
	if err != nil {
		return nil, err
	}
	impasse, err := c.optionalBool(v, "impasse", path)
	if err != nil {
		return nil, err
	}

	cond := &ir.Condition{Kind: ir.PositiveCondition, Acceptable: acceptable}
	if negated {
		cond.Kind = ir.NegativeCondition
	}
	for _, f := range ir.Fields {
		t, err := c.fieldTest(path, v, f.String())
		if err != nil {
			ir.ReleaseConditions(c.syms, []*ir.Condition{cond})
			return nil, err
		}
		*cond.FieldTestPtr(f) = t
	}
	if goal {
		cond.ID = ir.Conjoin(cond.ID, ir.GoalTest{})
	}
	if impasse {
		cond.ID = ir.Conjoin(cond.ID, ir.ImpasseTest{})
	}
	return cond, nil
}

func (c *compiling) fieldTest(path string, v cue.Value, field string) (ir.Test, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, c.errorf(path+"."+field, v, "%s is required (use \"*\" for a blank test)", field)
	}
	text, err := scalarText(fv)
	if err != nil {
		return nil, c.errorf(path+"."+field, fv, "%v", err)
	}
	t, err := parseTest(c.syms, text)
	if err != nil {
		return nil, c.errorf(path+"."+field, fv, "%v", err)
	}
	return t, nil
}

func (c *compiling) actions(list cue.Value) error {
	iter, err := list.List()
	if err != nil {
		return c.errorf("rhs", list, "must be a list of actions")
	}
	for i := 0; iter.Next(); i++ {
		a, err := c.action(fmt.Sprintf("rhs[%d]", i), iter.Value())
		if err != nil {
			return err
		}
		c.prod.Actions = append(c.prod.Actions, a)
	}
	return nil
}

func (c *compiling) action(path string, v cue.Value) (*ir.Action, error) {
	if v.Kind() != cue.StructKind {
		return nil, c.errorf(path, v, "action must be a struct")
	}

	if cv := v.LookupPath(cue.ParsePath("call")); cv.Exists() {
		text, err := cv.String()
		if err != nil {
			return nil, c.errorf(path+".call", cv, "must be a string")
		}
		val, err := parseValue(c.syms, text)
		if err != nil {
			return nil, c.errorf(path+".call", cv, "%v", err)
		}
		if !ir.IsFuncCall(val) {
			ir.ReleaseValue(c.syms, val)
			return nil, c.errorf(path+".call", cv, "must be a function call")
		}
		return &ir.Action{Kind: ir.FuncCallAction, Value: val}, nil
	}

	a := &ir.Action{Kind: ir.MakeAction}
	release := func() { ir.ReleaseActions(c.syms, []*ir.Action{a}) }

	for _, f := range []struct {
		name string
		dst  *ir.Value
	}{{"id", &a.ID}, {"attr", &a.Attr}, {"value", &a.Value}} {
		fv := v.LookupPath(cue.ParsePath(f.name))
		if !fv.Exists() {
			release()
			return nil, c.errorf(path+"."+f.name, v, "%s is required", f.name)
		}
		val, err := c.value(path+"."+f.name, fv)
		if err != nil {
			release()
			return nil, err
		}
		*f.dst = val
	}

	pref, pv, err := c.optionalString(v, "pref")
	if err != nil {
		release()
		return nil, err
	}
	rv := v.LookupPath(cue.ParsePath("referent"))
	numeric := false
	if rv.Exists() {
		val, err := c.value(path+".referent", rv)
		if err != nil {
			release()
			return nil, err
		}
		a.Referent = val
		if lit, ok := val.(ir.Literal); ok && lit.Sym.IsNumeric() {
			numeric = true
		}
	}
	t, ok := ir.ParsePreference(pref, rv.Exists(), numeric)
	if !ok {
		release()
		if rv.Exists() {
			return nil, c.errorf(path+".pref", pv, "preference %q does not take a referent", pref)
		}
		return nil, c.errorf(path+".pref", pv, "unknown preference %q", pref)
	}
	a.Pref = t
	return a, nil
}

func (c *compiling) value(path string, fv cue.Value) (ir.Value, error) {
	text, err := scalarText(fv)
	if err != nil {
		return nil, c.errorf(path, fv, "%v", err)
	}
	val, err := parseValue(c.syms, text)
	if err != nil {
		return nil, c.errorf(path, fv, "%v", err)
	}
	return val, nil
}

// scalarText renders a CUE string or number as rule text.
func scalarText(v cue.Value) (string, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return "", err
		}
		return fmt.Sprint(i), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return "", err
		}
		s := fmt.Sprint(f)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	}
	return "", fmt.Errorf("must be a string or a number")
}
