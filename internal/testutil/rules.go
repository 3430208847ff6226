package testutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Sym interns a term written the way rules print it: <x> is a variable,
// numbers are numeric constants, |text| or bare words are strings.
func Sym(syms *symtab.Table, text string) *symtab.Symbol {
	switch {
	case len(text) > 2 && text[0] == '<' && text[len(text)-1] == '>':
		return syms.Var(text)
	case len(text) >= 2 && text[0] == '|' && text[len(text)-1] == '|':
		return syms.Str(text[1 : len(text)-1])
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return syms.Int(i)
	}
	if strings.ContainsAny(text, ".eE") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return syms.Float(f)
		}
	}
	return syms.Str(text)
}

// Test parses a field test: "*", "<x>", "red", "> <y>", "<< a b >>" or a
// conjunction "{ <x> > 3 < 9 }".
func Test(syms *symtab.Table, text string) ir.Test {
	text = strings.TrimSpace(text)
	if text == "*" || text == "" {
		return nil
	}
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	toks := strings.Fields(text)
	var tests []ir.Test
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok == "<<" {
			var d ir.DisjunctionTest
			for i++; i < len(toks) && toks[i] != ">>"; i++ {
				d.Syms = append(d.Syms, Sym(syms, toks[i]))
			}
			tests = append(tests, d)
			continue
		}
		if rel, ok := ir.ParseRelation(tok); ok && i+1 < len(toks) {
			i++
			tests = append(tests, ir.RelationalTest{Rel: rel, Referent: Sym(syms, toks[i])})
			continue
		}
		tests = append(tests, ir.EqualityTest{Sym: Sym(syms, tok)})
	}
	if len(tests) == 1 {
		return tests[0]
	}
	return ir.ConjunctiveTest{Tests: tests}
}

// Value parses an RHS value: a term or an s-expression function call such
// as "(+ <x> 1)".
func Value(syms *symtab.Table, text string) ir.Value {
	v, rest := parseValue(syms, tokenize(text))
	if len(rest) > 0 {
		panic(fmt.Sprintf("testutil: trailing input in value %q", text))
	}
	return v
}

func tokenize(text string) []string {
	text = strings.ReplaceAll(text, "(", " ( ")
	text = strings.ReplaceAll(text, ")", " ) ")
	return strings.Fields(text)
}

func parseValue(syms *symtab.Table, toks []string) (ir.Value, []string) {
	if len(toks) == 0 {
		panic("testutil: empty value")
	}
	if toks[0] != "(" {
		return ir.Lit(Sym(syms, toks[0])), toks[1:]
	}
	call := &ir.FuncCall{Name: toks[1]}
	toks = toks[2:]
	for len(toks) > 0 && toks[0] != ")" {
		var arg ir.Value
		arg, toks = parseValue(syms, toks)
		call.Args = append(call.Args, arg)
	}
	if len(toks) == 0 {
		panic("testutil: unbalanced call")
	}
	return call, toks[1:]
}

// Cond builds a positive condition.
func Cond(syms *symtab.Table, id, attr, value string) *ir.Condition {
	return &ir.Condition{
		Kind:  ir.PositiveCondition,
		ID:    Test(syms, id),
		Attr:  Test(syms, attr),
		Value: Test(syms, value),
	}
}

// State builds a positive condition whose identifier is tested as a goal.
func State(syms *symtab.Table, id, attr, value string) *ir.Condition {
	c := Cond(syms, id, attr, value)
	c.ID = ir.Conjoin(c.ID, ir.GoalTest{})
	return c
}

// Neg builds a negative condition.
func Neg(syms *symtab.Table, id, attr, value string) *ir.Condition {
	c := Cond(syms, id, attr, value)
	c.Kind = ir.NegativeCondition
	return c
}

// NCC builds a conjunctive negation.
func NCC(conds ...*ir.Condition) *ir.Condition {
	return &ir.Condition{Kind: ir.ConjunctiveNegation, NCC: conds}
}

// Acceptable marks c as testing acceptable-preference elements.
func Acceptable(c *ir.Condition) *ir.Condition {
	c.Acceptable = true
	return c
}

// Make builds a make action. referent may be empty.
func Make(syms *symtab.Table, id, attr, value string, pref ir.PreferenceType, referent string) *ir.Action {
	a := &ir.Action{
		Kind:  ir.MakeAction,
		Pref:  pref,
		ID:    Value(syms, id),
		Attr:  Value(syms, attr),
		Value: Value(syms, value),
	}
	if referent != "" {
		a.Referent = Value(syms, referent)
	}
	return a
}

// CallAction builds a standalone function-call action from "(fn args...)".
func CallAction(syms *symtab.Table, call string) *ir.Action {
	return &ir.Action{Kind: ir.FuncCallAction, Value: Value(syms, call)}
}

// RuleBuilder assembles a production for tests.
type RuleBuilder struct {
	syms *symtab.Table
	p    *ir.Production
}

// Rule starts a user production named name.
func Rule(syms *symtab.Table, name string) *RuleBuilder {
	return &RuleBuilder{syms: syms, p: &ir.Production{Name: name, Type: ir.UserProduction}}
}

// Type sets the production type.
func (b *RuleBuilder) Type(t ir.ProductionType) *RuleBuilder {
	b.p.Type = t
	return b
}

// Support sets the support declaration.
func (b *RuleBuilder) Support(d ir.SupportDeclaration) *RuleBuilder {
	b.p.Support = d
	return b
}

// State appends a goal-tested positive condition.
func (b *RuleBuilder) State(id, attr, value string) *RuleBuilder {
	return b.With(State(b.syms, id, attr, value))
}

// Cond appends a positive condition.
func (b *RuleBuilder) Cond(id, attr, value string) *RuleBuilder {
	return b.With(Cond(b.syms, id, attr, value))
}

// Neg appends a negative condition.
func (b *RuleBuilder) Neg(id, attr, value string) *RuleBuilder {
	return b.With(Neg(b.syms, id, attr, value))
}

// With appends prebuilt conditions.
func (b *RuleBuilder) With(conds ...*ir.Condition) *RuleBuilder {
	b.p.Conds = append(b.p.Conds, conds...)
	return b
}

// Make appends a unary make action.
func (b *RuleBuilder) Make(id, attr, value string, pref ir.PreferenceType) *RuleBuilder {
	b.p.Actions = append(b.p.Actions, Make(b.syms, id, attr, value, pref, ""))
	return b
}

// MakeBinary appends a binary make action.
func (b *RuleBuilder) MakeBinary(id, attr, value string, pref ir.PreferenceType, referent string) *RuleBuilder {
	b.p.Actions = append(b.p.Actions, Make(b.syms, id, attr, value, pref, referent))
	return b
}

// Call appends a standalone function-call action.
func (b *RuleBuilder) Call(call string) *RuleBuilder {
	b.p.Actions = append(b.p.Actions, CallAction(b.syms, call))
	return b
}

// Build returns the production.
func (b *RuleBuilder) Build() *ir.Production {
	return b.p
}
