package ir

import (
	"io"
	"log/slog"

	"github.com/roach88/prodsys/internal/symtab"
)

// Value is a sealed interface representing a right-hand-side term.
// Only Literal, *FuncCall, Location and Unbound implement it.
//
// Before a production is registered its values are Literals (constants or
// variables) and FuncCalls. Registration rewrites every LHS-bound variable
// into a Location and every RHS-only variable into an Unbound index.
type Value interface {
	rhsValue() // Sealed
}

// Literal is a symbol used as-is.
type Literal struct {
	Sym *symtab.Symbol
}

// FuncCall applies a function to evaluated arguments.
// Fn is nil until the call is resolved against a function library.
type FuncCall struct {
	Name string
	Fn   *Function
	Args []Value
}

// Location re-reads a field of an already-matched element. LevelsUp counts
// back from the last condition of the production (0 is the last one).
type Location struct {
	LevelsUp int
	Field    Field
}

// Unbound indexes the per-firing table of identifiers generated for
// variables that appear only on the right-hand side.
type Unbound struct {
	Index int
}

func (Literal) rhsValue()   {}
func (*FuncCall) rhsValue() {}
func (Location) rhsValue()  {}
func (Unbound) rhsValue()   {}

// Caller is what a function implementation may touch while it runs.
type Caller interface {
	Symbols() *symtab.Table
	Output() io.Writer
	Halt()
	Logger() *slog.Logger
}

// FunctionImpl implements an RHS function. It returns a symbol the caller
// owns one reference to, or nil for a void result.
type FunctionImpl func(c Caller, args []*symtab.Symbol) (*symtab.Symbol, error)

// Function describes an RHS function.
type Function struct {
	Name string

	// MinArgs and MaxArgs bound the argument count. MaxArgs < 0 means
	// variadic.
	MinArgs int
	MaxArgs int

	// Valued functions may appear as values inside make actions.
	Valued bool
	// Standalone functions may appear as a top-level action.
	Standalone bool

	Impl FunctionImpl
}

// AcceptsArgs reports whether n arguments are allowed.
func (f *Function) AcceptsArgs(n int) bool {
	if n < f.MinArgs {
		return false
	}
	return f.MaxArgs < 0 || n <= f.MaxArgs
}

// Lit wraps a symbol in a Literal.
func Lit(s *symtab.Symbol) Literal {
	return Literal{Sym: s}
}

// Call builds an unresolved function call.
func Call(name string, args ...Value) *FuncCall {
	return &FuncCall{Name: name, Args: args}
}

// ValueVariables calls fn for every variable literal inside v, descending
// into function-call arguments.
func ValueVariables(v Value, fn func(*symtab.Symbol)) {
	switch vv := v.(type) {
	case Literal:
		if vv.Sym.IsVariable() {
			fn(vv.Sym)
		}
	case *FuncCall:
		for _, a := range vv.Args {
			ValueVariables(a, fn)
		}
	}
}

// IsFuncCall reports whether v is a function call.
func IsFuncCall(v Value) bool {
	_, ok := v.(*FuncCall)
	return ok
}

// ReleaseValue gives back the symbol references held by v.
func ReleaseValue(syms *symtab.Table, v Value) {
	switch vv := v.(type) {
	case Literal:
		syms.Release(vv.Sym)
	case *FuncCall:
		for _, a := range vv.Args {
			ReleaseValue(syms, a)
		}
	}
}
