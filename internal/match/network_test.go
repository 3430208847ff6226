package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
	"github.com/roach88/prodsys/internal/testutil"
	"github.com/roach88/prodsys/internal/wm"
)

type fixture struct {
	syms *symtab.Table
	mem  *wm.Memory
	net  *Network
	goal *symtab.Symbol
}

func newFixture() *fixture {
	syms := symtab.NewTable()
	mem := wm.New(syms)
	f := &fixture{syms: syms, mem: mem, net: New(mem)}
	f.goal = mem.PushGoal()
	return f
}

func (f *fixture) fact(t *testing.T, id *symtab.Symbol, attr, value string) *ir.WME {
	t.Helper()
	w, err := f.mem.AddFact(id, testutil.Sym(f.syms, attr), testutil.Sym(f.syms, value))
	require.NoError(t, err)
	return w
}

// ============================================================================
// Joins
// ============================================================================

func TestUpdate_AssertsAndRetracts(t *testing.T) {
	f := newFixture()
	p := testutil.Rule(f.syms, "r1").State("<s>", "foo", "1").Build()
	f.net.Add(p)

	assert.True(t, f.net.Update().Empty())

	w := f.fact(t, f.goal, "foo", "1")
	d := f.net.Update()
	require.Len(t, d.Asserted, 1)
	assert.Same(t, p, d.Asserted[0].Prod)
	assert.Equal(t, ir.Token{w}, d.Asserted[0].Token)
	assert.Equal(t, "r1|1", d.Asserted[0].Key)

	assert.True(t, f.net.Update().Empty(), "unchanged memory yields no delta")

	f.mem.RemoveFact(w)
	d = f.net.Update()
	require.Len(t, d.Retracted, 1)
	assert.Empty(t, d.Asserted)
	assert.Empty(t, f.net.Matches())
}

func TestUpdate_JoinsOnSharedVariables(t *testing.T) {
	f := newFixture()
	p := testutil.Rule(f.syms, "chain").
		State("<s>", "block", "<b>").
		Cond("<b>", "color", "red").
		Build()
	f.net.Add(p)

	b1 := f.syms.NewIdentifier('B', 1)
	b2 := f.syms.NewIdentifier('B', 1)
	w1, err := f.mem.AddFact(f.goal, f.syms.Str("block"), b1)
	require.NoError(t, err)
	w2, err := f.mem.AddFact(f.goal, f.syms.Str("block"), b2)
	require.NoError(t, err)
	red1, err := f.mem.AddFact(b1, f.syms.Str("color"), f.syms.Str("red"))
	require.NoError(t, err)
	_, err = f.mem.AddFact(b2, f.syms.Str("color"), f.syms.Str("blue"))
	require.NoError(t, err)

	d := f.net.Update()
	require.Len(t, d.Asserted, 1)
	assert.Equal(t, ir.Token{w1, red1}, d.Asserted[0].Token)
	assert.NotContains(t, d.Asserted[0].Token, w2)
}

func TestUpdate_RelationalAndDisjunction(t *testing.T) {
	f := newFixture()
	p := testutil.Rule(f.syms, "bigger").
		State("<s>", "low", "<l>").
		Cond("<s>", "high", "{ <h> > <l> }").
		Cond("<s>", "mode", "<< fast slow >>").
		Build()
	f.net.Add(p)

	f.fact(t, f.goal, "low", "3")
	f.fact(t, f.goal, "high", "2")
	f.fact(t, f.goal, "high", "7")
	f.fact(t, f.goal, "mode", "medium")
	assert.Empty(t, f.net.Update().Asserted)

	f.fact(t, f.goal, "mode", "slow")
	d := f.net.Update()
	require.Len(t, d.Asserted, 1)
	assert.Equal(t, "7", d.Asserted[0].Token[1].Value.String())
}

func TestUpdate_NegationBlocksMatch(t *testing.T) {
	f := newFixture()
	p := testutil.Rule(f.syms, "lonely").
		State("<s>", "item", "<x>").
		Neg("<s>", "paired", "<x>").
		Build()
	f.net.Add(p)

	f.fact(t, f.goal, "item", "a")
	f.fact(t, f.goal, "item", "b")
	f.fact(t, f.goal, "paired", "a")

	d := f.net.Update()
	require.Len(t, d.Asserted, 1)
	tok := d.Asserted[0].Token
	require.Len(t, tok, 2)
	assert.Equal(t, "b", tok[0].Value.String())
	assert.Nil(t, tok[1])
}

func TestUpdate_ConjunctiveNegation(t *testing.T) {
	f := newFixture()
	ncc := testutil.NCC(
		testutil.Cond(f.syms, "<s>", "link", "<y>"),
		testutil.Cond(f.syms, "<y>", "ok", "yes"),
	)
	p := testutil.Rule(f.syms, "no-good-link").
		State("<s>", "ready", "true").
		With(ncc).
		Build()
	f.net.Add(p)

	f.fact(t, f.goal, "ready", "true")
	y := f.syms.NewIdentifier('Y', 1)
	_, err := f.mem.AddFact(f.goal, f.syms.Str("link"), y)
	require.NoError(t, err)
	require.Len(t, f.net.Update().Asserted, 1, "link without ok does not block")

	ok, err := f.mem.AddFact(y, f.syms.Str("ok"), f.syms.Str("yes"))
	require.NoError(t, err)
	d := f.net.Update()
	assert.Len(t, d.Retracted, 1)

	f.mem.RemoveFact(ok)
	assert.Len(t, f.net.Update().Asserted, 1)
}

func TestUpdate_AcceptableElements(t *testing.T) {
	f := newFixture()
	p := testutil.Rule(f.syms, "sees-proposal").
		With(testutil.Acceptable(testutil.State(f.syms, "<s>", "operator", "<o>"))).
		Build()
	f.net.Add(p)

	o := f.syms.NewIdentifier('O', 1)
	pref := &ir.Preference{Type: ir.AcceptablePref, ID: f.goal, Attr: f.syms.Str(wm.OperatorAttr), Value: o}
	require.NoError(t, f.mem.AddPreference(pref))

	d := f.net.Update()
	require.Len(t, d.Asserted, 1)
	assert.True(t, d.Asserted[0].Token[0].Acceptable)
}

func TestRemove_ForgetsMatches(t *testing.T) {
	f := newFixture()
	p := testutil.Rule(f.syms, "r1").State("<s>", "foo", "1").Build()
	f.net.Add(p)
	f.net.Add(p)
	f.fact(t, f.goal, "foo", "1")
	require.Len(t, f.net.Update().Asserted, 1)

	f.net.Remove(p)
	assert.Empty(t, f.net.Matches())
	assert.Empty(t, f.net.Productions())
	assert.True(t, f.net.Update().Empty())
}

func TestDrop_ForgetsOneMatch(t *testing.T) {
	f := newFixture()
	p := testutil.Rule(f.syms, "r1").State("<s>", "foo", "<v>").Build()
	f.net.Add(p)
	w1 := f.fact(t, f.goal, "foo", "1")
	f.fact(t, f.goal, "foo", "2")
	d := f.net.Update()
	require.Len(t, d.Asserted, 2)

	f.net.Drop(d.Asserted[0].Key)
	f.net.Drop("unknown")
	require.Len(t, f.net.Matches(), 1)

	// still matching, so the dropped match comes back
	d = f.net.Update()
	require.Len(t, d.Asserted, 1)
	assert.Equal(t, ir.Token{w1}, d.Asserted[0].Token)
	assert.Empty(t, d.Retracted)
}

func TestUpdate_OrdersByDeclaration(t *testing.T) {
	f := newFixture()
	second := testutil.Rule(f.syms, "b").State("<s>", "foo", "<v>").Build()
	first := testutil.Rule(f.syms, "a").State("<s>", "foo", "<v>").Build()
	f.net.Add(second)
	f.net.Add(first)
	f.fact(t, f.goal, "foo", "1")
	f.fact(t, f.goal, "foo", "2")

	d := f.net.Update()
	require.Len(t, d.Asserted, 4)
	var keys []string
	for _, m := range d.Asserted {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"b|1", "b|2", "a|1", "a|2"}, keys)
}
