package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Term syntax inside rule strings:
//
//	<x>          variable
//	|two words|  string constant, verbatim
//	42, -1.5     numeric constants
//	red          any other word is a string constant
//
// A field test is blank ("" or "*"), a term, a relation and a term
// ("> <y>"), a disjunction ("<< a b >>") or a conjunction of those in
// braces ("{ <x> > 3 <> 7 }").
//
// An RHS value is a term or a function call written as an s-expression
// ("(+ <n> 1)").

// term interns one term. The caller owns the returned reference.
func term(syms *symtab.Table, text string) (*symtab.Symbol, error) {
	switch {
	case text == "":
		return nil, fmt.Errorf("empty term")
	case len(text) > 2 && text[0] == '<' && text[len(text)-1] == '>':
		return syms.Var(text), nil
	case len(text) >= 2 && text[0] == '|' && text[len(text)-1] == '|':
		return syms.Str(text[1 : len(text)-1]), nil
	case strings.ContainsAny(text, "(){}"):
		return nil, fmt.Errorf("unexpected %q", text)
	}
	return syms.Constant(text), nil
}

// lex splits rule text into tokens. Parentheses are separate tokens and a
// |quoted| string stays one token even when it contains spaces.
func lex(text string) ([]string, error) {
	var (
		toks []string
		cur  strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '|':
			end := strings.IndexByte(text[i+1:], '|')
			if end < 0 {
				return nil, fmt.Errorf("unterminated |string| in %q", text)
			}
			cur.WriteString(text[i : i+end+2])
			i += end + 1
		case c == '(' || c == ')' || c == '{' || c == '}':
			flush()
			toks = append(toks, string(c))
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return toks, nil
}

// parseTest parses a field test. A nil test is blank.
func parseTest(syms *symtab.Table, text string) (ir.Test, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 || (len(toks) == 1 && toks[0] == "*") {
		return nil, nil
	}
	if toks[0] == "{" {
		if toks[len(toks)-1] != "}" {
			return nil, fmt.Errorf("unbalanced braces in %q", text)
		}
		toks = toks[1 : len(toks)-1]
	}

	var tests []ir.Test
	fail := func(err error) (ir.Test, error) {
		for _, t := range tests {
			ir.ReleaseTest(syms, t)
		}
		return nil, err
	}
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok == "<<" {
			var d ir.DisjunctionTest
			for i++; i < len(toks) && toks[i] != ">>"; i++ {
				s, err := term(syms, toks[i])
				if err != nil {
					tests = append(tests, d)
					return fail(err)
				}
				if s.IsVariable() {
					syms.Release(s)
					tests = append(tests, d)
					return fail(fmt.Errorf("variable %s in disjunction", toks[i]))
				}
				d.Syms = append(d.Syms, s)
			}
			if i == len(toks) {
				tests = append(tests, d)
				return fail(fmt.Errorf("unterminated disjunction in %q", text))
			}
			if len(d.Syms) == 0 {
				return fail(fmt.Errorf("empty disjunction in %q", text))
			}
			tests = append(tests, d)
			continue
		}
		if rel, ok := ir.ParseRelation(tok); ok {
			if i+1 == len(toks) {
				return fail(fmt.Errorf("relation %s without a referent", tok))
			}
			i++
			s, err := term(syms, toks[i])
			if err != nil {
				return fail(err)
			}
			tests = append(tests, ir.RelationalTest{Rel: rel, Referent: s})
			continue
		}
		s, err := term(syms, tok)
		if err != nil {
			return fail(err)
		}
		tests = append(tests, ir.EqualityTest{Sym: s})
	}
	if len(tests) == 1 {
		return tests[0], nil
	}
	return ir.ConjunctiveTest{Tests: tests}, nil
}

// parseValue parses an RHS value.
func parseValue(syms *symtab.Table, text string) (ir.Value, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	v, rest, err := parseValueTokens(syms, toks)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		ir.ReleaseValue(syms, v)
		return nil, fmt.Errorf("trailing input %q", strings.Join(rest, " "))
	}
	return v, nil
}

func parseValueTokens(syms *symtab.Table, toks []string) (ir.Value, []string, error) {
	if toks[0] != "(" {
		s, err := term(syms, toks[0])
		if err != nil {
			return nil, nil, err
		}
		return ir.Lit(s), toks[1:], nil
	}
	if len(toks) < 2 || toks[1] == "(" || toks[1] == ")" {
		return nil, nil, fmt.Errorf("function call without a name")
	}
	call := &ir.FuncCall{Name: toks[1]}
	toks = toks[2:]
	for len(toks) > 0 && toks[0] != ")" {
		arg, rest, err := parseValueTokens(syms, toks)
		if err != nil {
			ir.ReleaseValue(syms, call)
			return nil, nil, err
		}
		call.Args = append(call.Args, arg)
		toks = rest
	}
	if len(toks) == 0 {
		ir.ReleaseValue(syms, call)
		return nil, nil, fmt.Errorf("unbalanced parentheses in call to %s", call.Name)
	}
	return call, toks[1:], nil
}
