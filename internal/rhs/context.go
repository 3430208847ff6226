package rhs

import (
	"io"
	"log/slog"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Context is the state of one firing: the production, the matched token
// and the identifiers generated for RHS-only variables so far. It is not
// safe for concurrent use and must be released when the firing ends.
type Context struct {
	syms    *symtab.Table
	prod    *ir.Production
	token   ir.Token
	unbound []*symtab.Symbol
	out     io.Writer
	logger  *slog.Logger
	onHalt  func()
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithOutput sets where write sends text.
func WithOutput(w io.Writer) ContextOption {
	return func(c *Context) {
		c.out = w
	}
}

// WithLogger sets the logger handed to functions.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		c.logger = logger
	}
}

// WithHalt sets the callback run by halt.
func WithHalt(fn func()) ContextOption {
	return func(c *Context) {
		c.onHalt = fn
	}
}

// NewContext starts a firing of p against tok.
func NewContext(syms *symtab.Table, p *ir.Production, tok ir.Token, opts ...ContextOption) *Context {
	c := &Context{
		syms:   syms,
		prod:   p,
		token:  tok,
		out:    io.Discard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Symbols implements ir.Caller.
func (c *Context) Symbols() *symtab.Table { return c.syms }

// Output implements ir.Caller.
func (c *Context) Output() io.Writer { return c.out }

// Logger implements ir.Caller.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Halt implements ir.Caller.
func (c *Context) Halt() {
	if c.onHalt != nil {
		c.onHalt()
	}
}

// Production returns the production being fired.
func (c *Context) Production() *ir.Production { return c.prod }

// Evaluate computes v. The caller owns one reference to the returned
// symbol. A nil symbol with a nil error is a void result.
//
// Identifiers generated for RHS-only variables the first time they are
// seen in this firing are created at level. They are named after the
// variable, or after letter when the production is unknown.
func (c *Context) Evaluate(v ir.Value, level int, letter byte) (*symtab.Symbol, error) {
	switch vv := v.(type) {
	case ir.Literal:
		return c.syms.Retain(vv.Sym), nil

	case ir.Location:
		idx := len(c.token) - 1 - vv.LevelsUp
		if idx < 0 || idx >= len(c.token) || c.token[idx] == nil {
			return nil, evalErrorf("", "location %d.%s is outside the token", vv.LevelsUp, vv.Field)
		}
		return c.syms.Retain(c.token[idx].FieldSymbol(vv.Field)), nil

	case ir.Unbound:
		if vv.Index < 0 {
			return nil, evalErrorf("", "negative unbound index %d", vv.Index)
		}
		for len(c.unbound) <= vv.Index {
			c.unbound = append(c.unbound, nil)
		}
		if c.unbound[vv.Index] == nil {
			if c.prod != nil {
				if name := c.prod.UnboundSymbol(vv); name != nil {
					letter = name.FirstLetter()
				}
			}
			c.unbound[vv.Index] = c.syms.NewIdentifier(letter, level)
		}
		return c.syms.Retain(c.unbound[vv.Index]), nil

	case *ir.FuncCall:
		return c.call(vv, level, letter)
	}
	return nil, evalErrorf("", "missing value")
}

// call evaluates every argument left to right, then skips the call when
// any argument was void.
func (c *Context) call(fc *ir.FuncCall, level int, letter byte) (*symtab.Symbol, error) {
	if fc.Fn == nil {
		return nil, evalErrorf(fc.Name, "unresolved function")
	}
	args := make([]*symtab.Symbol, 0, len(fc.Args))
	defer func() {
		for _, a := range args {
			c.syms.Release(a)
		}
	}()

	void := false
	for _, arg := range fc.Args {
		s, err := c.Evaluate(arg, level, letter)
		if err != nil {
			return nil, err
		}
		if s == nil {
			void = true
			continue
		}
		args = append(args, s)
	}
	if void {
		c.logger.Debug("skipping call with void argument", "function", fc.Name, "production", c.prodName())
		return nil, nil
	}
	return fc.Fn.Impl(c, args)
}

// Release gives back the identifiers generated during this firing. Values
// returned by Evaluate hold their own references and stay valid.
func (c *Context) Release() {
	for _, s := range c.unbound {
		c.syms.Release(s)
	}
	c.unbound = nil
}

func (c *Context) prodName() string {
	if c.prod == nil {
		return ""
	}
	return c.prod.Name
}
