package ir

import (
	"fmt"
	"strings"

	"github.com/roach88/prodsys/internal/symtab"
)

// renderer prints rules. When rename is non-nil, variables are replaced by
// <v1>, <v2>, ... in order of first appearance, which makes the output
// invariant under alpha-renaming.
type renderer struct {
	prod   *Production
	rename map[*symtab.Symbol]string
}

func (r *renderer) sym(s *symtab.Symbol) string {
	if r.rename != nil && s.IsVariable() {
		name, ok := r.rename[s]
		if !ok {
			name = fmt.Sprintf("<v%d>", len(r.rename)+1)
			r.rename[s] = name
		}
		return name
	}
	return s.String()
}

func (r *renderer) test(t Test) string {
	switch tt := t.(type) {
	case nil:
		return "*"
	case EqualityTest:
		return r.sym(tt.Sym)
	case RelationalTest:
		return tt.Rel.String() + " " + r.sym(tt.Referent)
	case DisjunctionTest:
		parts := make([]string, len(tt.Syms))
		for i, s := range tt.Syms {
			parts[i] = r.sym(s)
		}
		return "<< " + strings.Join(parts, " ") + " >>"
	case ConjunctiveTest:
		var parts []string
		for _, sub := range tt.Tests {
			switch sub.(type) {
			case GoalTest, ImpasseTest:
				continue
			}
			parts = append(parts, r.test(sub))
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "{ " + strings.Join(parts, " ") + " }"
	case GoalTest, ImpasseTest:
		return "*"
	}
	return "?"
}

func (r *renderer) condition(c *Condition) string {
	if c.Kind == ConjunctiveNegation {
		parts := make([]string, len(c.NCC))
		for i, sub := range c.NCC {
			parts[i] = r.condition(sub)
		}
		return "-{" + strings.Join(parts, " ") + "}"
	}
	var b strings.Builder
	if c.Kind == NegativeCondition {
		b.WriteByte('-')
	}
	b.WriteByte('(')
	switch {
	case HasGoalTest(c.ID):
		b.WriteString("state ")
	case HasImpasseTest(c.ID):
		b.WriteString("impasse ")
	}
	b.WriteString(r.test(c.ID))
	b.WriteString(" ^")
	b.WriteString(r.test(c.Attr))
	b.WriteByte(' ')
	b.WriteString(r.test(c.Value))
	if c.Acceptable {
		b.WriteString(" +")
	}
	b.WriteByte(')')
	return b.String()
}

func (r *renderer) value(v Value) string {
	switch vv := v.(type) {
	case Literal:
		return r.sym(vv.Sym)
	case *FuncCall:
		parts := []string{vv.Name}
		for _, a := range vv.Args {
			parts = append(parts, r.value(a))
		}
		return "(" + strings.Join(parts, " ") + ")"
	case Location:
		if r.prod != nil {
			if s := r.prod.LocationSymbol(vv); s != nil {
				return r.sym(s)
			}
		}
		return fmt.Sprintf("<loc %d.%s>", vv.LevelsUp, vv.Field)
	case Unbound:
		if r.prod != nil {
			if s := r.prod.UnboundSymbol(vv); s != nil {
				return r.sym(s)
			}
		}
		return fmt.Sprintf("<unbound %d>", vv.Index)
	}
	return "?"
}

func (r *renderer) action(a *Action) string {
	if a.Kind == FuncCallAction {
		return r.value(a.Value)
	}
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(r.value(a.ID))
	b.WriteString(" ^")
	b.WriteString(r.value(a.Attr))
	b.WriteByte(' ')
	b.WriteString(r.value(a.Value))
	b.WriteByte(' ')
	b.WriteString(a.Pref.Symbol())
	if a.Referent != nil {
		b.WriteByte(' ')
		b.WriteString(r.value(a.Referent))
	}
	b.WriteByte(')')
	return b.String()
}

// Render prints a production in sp {...} form.
func Render(p *Production) string {
	r := &renderer{prod: p}
	var b strings.Builder
	fmt.Fprintf(&b, "sp {%s\n", p.Name)
	if p.Doc != "" {
		fmt.Fprintf(&b, "    %q\n", p.Doc)
	}
	switch p.Type {
	case DefaultProduction, ChunkProduction, JustificationProduction, TemplateProduction:
		fmt.Fprintf(&b, "    :%s\n", p.Type)
	}
	switch p.Support {
	case DeclaredISupport:
		b.WriteString("    :i-support\n")
	case DeclaredOSupport:
		b.WriteString("    :o-support\n")
	}
	for _, c := range p.Conds {
		fmt.Fprintf(&b, "    %s\n", r.condition(c))
	}
	b.WriteString("    -->\n")
	for _, a := range p.Actions {
		fmt.Fprintf(&b, "    %s\n", r.action(a))
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderCondition prints one condition.
func RenderCondition(c *Condition) string {
	return (&renderer{}).condition(c)
}

// RenderConditions prints each condition of conds.
func RenderConditions(conds []*Condition) []string {
	r := &renderer{}
	out := make([]string, len(conds))
	for i, c := range conds {
		out[i] = r.condition(c)
	}
	return out
}

// RenderAction prints one action. p resolves locations and unbound indices
// back to variable names and may be nil for unencoded actions.
func RenderAction(p *Production, a *Action) string {
	return (&renderer{prod: p}).action(a)
}

// RenderTest prints one field test.
func RenderTest(t Test) string {
	return (&renderer{}).test(t)
}

// RenderValue prints one RHS value.
func RenderValue(p *Production, v Value) string {
	return (&renderer{prod: p}).value(v)
}

// canonicalForm renders conditions and actions with alpha-renamed variables.
func canonicalForm(p *Production) (lhs, rhs []string) {
	r := &renderer{prod: p, rename: make(map[*symtab.Symbol]string)}
	for _, c := range p.Conds {
		lhs = append(lhs, r.condition(c))
	}
	for _, a := range p.Actions {
		rhs = append(rhs, r.action(a))
	}
	return lhs, rhs
}
