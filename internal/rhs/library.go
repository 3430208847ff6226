package rhs

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Library is the set of functions a right-hand side may call.
type Library struct {
	fns map[string]*ir.Function
}

// NewLibrary returns a library holding the built-in functions.
func NewLibrary() *Library {
	l := &Library{fns: make(map[string]*ir.Function)}
	for _, fn := range builtins() {
		l.fns[fn.Name] = fn
	}
	return l
}

// Register adds fn. Names must be unique.
func (l *Library) Register(fn *ir.Function) error {
	if fn.Name == "" || fn.Impl == nil {
		return fmt.Errorf("rhs: function needs a name and an implementation")
	}
	if _, exists := l.fns[fn.Name]; exists {
		return fmt.Errorf("rhs: function %q already registered", fn.Name)
	}
	l.fns[fn.Name] = fn
	return nil
}

// Lookup returns the function named name.
func (l *Library) Lookup(name string) (*ir.Function, bool) {
	fn, ok := l.fns[name]
	return fn, ok
}

// Names returns the registered function names, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.fns))
	for name := range l.fns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func builtins() []*ir.Function {
	return []*ir.Function{
		{Name: "+", MinArgs: 0, MaxArgs: -1, Valued: true, Impl: plus},
		{Name: "-", MinArgs: 1, MaxArgs: -1, Valued: true, Impl: minus},
		{Name: "*", MinArgs: 0, MaxArgs: -1, Valued: true, Impl: times},
		{Name: "/", MinArgs: 1, MaxArgs: -1, Valued: true, Impl: divide},
		{Name: "div", MinArgs: 2, MaxArgs: 2, Valued: true, Impl: intDiv},
		{Name: "mod", MinArgs: 2, MaxArgs: 2, Valued: true, Impl: intMod},
		{Name: "abs", MinArgs: 1, MaxArgs: 1, Valued: true, Impl: abs},
		{Name: "int", MinArgs: 1, MaxArgs: 1, Valued: true, Impl: toInt},
		{Name: "float", MinArgs: 1, MaxArgs: 1, Valued: true, Impl: toFloat},
		{Name: "concat", MinArgs: 0, MaxArgs: -1, Valued: true, Impl: concat},
		{Name: "make-constant-symbol", MinArgs: 0, MaxArgs: -1, Valued: true, Impl: makeConstant},
		{Name: "ifeq", MinArgs: 4, MaxArgs: 4, Valued: true, Impl: ifeq},
		{Name: "crlf", MinArgs: 0, MaxArgs: 0, Valued: true, Impl: crlf},
		{Name: "write", MinArgs: 0, MaxArgs: -1, Standalone: true, Impl: write},
		{Name: "halt", MinArgs: 0, MaxArgs: 0, Standalone: true, Impl: halt},
	}
}

// text renders a symbol without rule-syntax quoting.
func text(s *symtab.Symbol) string {
	if s.Kind() == symtab.StrConstantKind {
		return s.Str()
	}
	return s.String()
}

func requireNumbers(fn string, args []*symtab.Symbol) (anyFloat bool, err error) {
	for _, a := range args {
		if !a.IsNumeric() {
			return false, evalErrorf(fn, "non-numeric argument %s", a)
		}
		if a.Kind() == symtab.FloatConstantKind {
			anyFloat = true
		}
	}
	return anyFloat, nil
}

func number(syms *symtab.Table, anyFloat bool, i int64, f float64) *symtab.Symbol {
	if anyFloat {
		return syms.Float(f)
	}
	return syms.Int(i)
}

func plus(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	anyFloat, err := requireNumbers("+", args)
	if err != nil {
		return nil, err
	}
	var i int64
	var f float64
	for _, a := range args {
		i += a.Int()
		f += a.Number()
	}
	return number(c.Symbols(), anyFloat, i, f), nil
}

func times(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	anyFloat, err := requireNumbers("*", args)
	if err != nil {
		return nil, err
	}
	var i int64 = 1
	f := 1.0
	for _, a := range args {
		i *= a.Int()
		f *= a.Number()
	}
	return number(c.Symbols(), anyFloat, i, f), nil
}

func minus(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	anyFloat, err := requireNumbers("-", args)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return number(c.Symbols(), anyFloat, -args[0].Int(), -args[0].Number()), nil
	}
	i, f := args[0].Int(), args[0].Number()
	for _, a := range args[1:] {
		i -= a.Int()
		f -= a.Number()
	}
	return number(c.Symbols(), anyFloat, i, f), nil
}

func divide(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	if _, err := requireNumbers("/", args); err != nil {
		return nil, err
	}
	if len(args) == 1 {
		if args[0].Number() == 0 {
			return nil, evalErrorf("/", "division by zero")
		}
		return c.Symbols().Float(1 / args[0].Number()), nil
	}
	f := args[0].Number()
	for _, a := range args[1:] {
		if a.Number() == 0 {
			return nil, evalErrorf("/", "division by zero")
		}
		f /= a.Number()
	}
	return c.Symbols().Float(f), nil
}

func requireInts(fn string, args []*symtab.Symbol) error {
	for _, a := range args {
		if a.Kind() != symtab.IntConstantKind {
			return evalErrorf(fn, "non-integer argument %s", a)
		}
	}
	return nil
}

func intDiv(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	if err := requireInts("div", args); err != nil {
		return nil, err
	}
	if args[1].Int() == 0 {
		return nil, evalErrorf("div", "division by zero")
	}
	return c.Symbols().Int(args[0].Int() / args[1].Int()), nil
}

func intMod(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	if err := requireInts("mod", args); err != nil {
		return nil, err
	}
	if args[1].Int() == 0 {
		return nil, evalErrorf("mod", "division by zero")
	}
	return c.Symbols().Int(args[0].Int() % args[1].Int()), nil
}

func abs(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	a := args[0]
	switch a.Kind() {
	case symtab.IntConstantKind:
		if a.Int() < 0 {
			return c.Symbols().Int(-a.Int()), nil
		}
		return c.Symbols().Int(a.Int()), nil
	case symtab.FloatConstantKind:
		return c.Symbols().Float(math.Abs(a.Float())), nil
	}
	return nil, evalErrorf("abs", "non-numeric argument %s", a)
}

func toInt(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	a := args[0]
	switch a.Kind() {
	case symtab.IntConstantKind:
		return c.Symbols().Int(a.Int()), nil
	case symtab.FloatConstantKind:
		return c.Symbols().Int(int64(a.Float())), nil
	case symtab.StrConstantKind:
		if i, err := strconv.ParseInt(strings.TrimSpace(a.Str()), 10, 64); err == nil {
			return c.Symbols().Int(i), nil
		}
	}
	return nil, evalErrorf("int", "cannot convert %s", a)
}

func toFloat(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	a := args[0]
	switch a.Kind() {
	case symtab.IntConstantKind, symtab.FloatConstantKind:
		return c.Symbols().Float(a.Number()), nil
	case symtab.StrConstantKind:
		if f, err := strconv.ParseFloat(strings.TrimSpace(a.Str()), 64); err == nil {
			return c.Symbols().Float(f), nil
		}
	}
	return nil, evalErrorf("float", "cannot convert %s", a)
}

func concat(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(text(a))
	}
	return c.Symbols().Str(b.String()), nil
}

func makeConstant(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(text(a))
	}
	return c.Symbols().GenerateConstant(b.String()), nil
}

func ifeq(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	if args[0] == args[1] {
		return c.Symbols().Retain(args[2]), nil
	}
	return c.Symbols().Retain(args[3]), nil
}

func crlf(c ir.Caller, _ []*symtab.Symbol) (*symtab.Symbol, error) {
	return c.Symbols().Str("\n"), nil
}

func write(c ir.Caller, args []*symtab.Symbol) (*symtab.Symbol, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(text(a))
	}
	if _, err := fmt.Fprint(c.Output(), b.String()); err != nil {
		return nil, evalErrorf("write", "%v", err)
	}
	return nil, nil
}

func halt(c ir.Caller, _ []*symtab.Symbol) (*symtab.Symbol, error) {
	c.Halt()
	return nil, nil
}
