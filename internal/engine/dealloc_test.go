package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/registry"
	"github.com/roach88/prodsys/internal/rhs"
	"github.com/roach88/prodsys/internal/symtab"
	"github.com/roach88/prodsys/internal/testutil"
)

// countingMemory accepts every preference without building elements.
type countingMemory struct {
	added, removed int
}

func (m *countingMemory) AddPreference(*ir.Preference) error { m.added++; return nil }
func (m *countingMemory) RemovePreference(*ir.Preference)    { m.removed++ }

// chain fires "link" n times. Each token's element was produced by the
// previous firing, so every instantiation is the trace of the next.
func chain(t *testing.T, e *Engine, syms *symtab.Table, p *ir.Production, n int) ([]ir.Token, []*ir.Instantiation) {
	t.Helper()
	x := syms.NewIdentifier('X', 1)
	attr := syms.Str("next")
	toks := make([]ir.Token, n)
	insts := make([]*ir.Instantiation, n)
	var prev *ir.Preference
	for i := 0; i < n; i++ {
		w := &ir.WME{ID: x, Attr: attr, Value: x, Timetag: uint64(i + 1), Pref: prev}
		toks[i] = ir.Token{w}
		inst, err := e.OnTokenMatched(p, toks[i])
		require.NoError(t, err)
		require.Len(t, inst.Prefs, 1)
		insts[i] = inst
		prev = inst.Prefs[0]
	}
	return toks, insts
}

func newChainEngine(t *testing.T) (*Engine, *symtab.Table, *ir.Production, *recorder) {
	t.Helper()
	syms := symtab.NewTable()
	reg := registry.New(syms, rhs.NewLibrary(), registry.WithLogger(quietLogger()))
	p, err := reg.Register(testutil.Rule(syms, "link").
		Cond("<x>", "next", "<y>").
		Make("<y>", "next", "<x>", ir.AcceptablePref).
		Build())
	require.NoError(t, err)
	rec := &recorder{}
	e := New(syms, reg, &countingMemory{}, WithLogger(quietLogger()), WithListener(rec))
	return e, syms, p, rec
}

func TestDeallocate_DeepChainIsIterative(t *testing.T) {
	const n = 100000
	e, syms, p, rec := newChainEngine(t)
	toks, insts := chain(t, e, syms, p, n)

	// An unrelated firing that must survive the teardown.
	y := syms.NewIdentifier('Y', 1)
	other, err := e.OnTokenMatched(p, ir.Token{{ID: y, Attr: syms.Str("next"), Value: y, Timetag: n + 1}})
	require.NoError(t, err)

	// Every link but the last is still the trace of its successor.
	for i := 0; i < n-1; i++ {
		require.NoError(t, e.OnTokenRetracted(p, toks[i]))
	}
	assert.Empty(t, rec.deallocated)
	assert.Equal(t, n+1, e.Live())

	require.NoError(t, e.OnTokenRetracted(p, toks[n-1]))

	assert.Len(t, rec.deallocated, n)
	assert.Equal(t, insts[0].ID, rec.deallocated[0], "released in reverse discovery order")
	assert.Equal(t, insts[n-1].ID, rec.deallocated[n-1])
	for _, inst := range insts {
		require.Equal(t, ir.StateDeallocated, inst.State)
	}
	assert.Equal(t, ir.StateInMatchSet, other.State)
	assert.Equal(t, 1, e.Live())
	assert.Equal(t, 2, p.RefCount())
}

func TestDeallocate_TraceKeepsProducerAlive(t *testing.T) {
	e, syms, p, rec := newChainEngine(t)
	toks, insts := chain(t, e, syms, p, 2)

	require.NoError(t, e.OnTokenRetracted(p, toks[0]))
	assert.Equal(t, ir.StateRetracted, insts[0].State)
	assert.Len(t, insts[0].Prefs, 1, "still the trace of the second firing")
	assert.Equal(t, 1, insts[0].Prefs[0].RefCount())

	require.NoError(t, e.OnTokenRetracted(p, toks[1]))
	assert.Equal(t, []uint64{insts[0].ID, insts[1].ID}, rec.deallocated)
}

func TestLifecycle_RefCountConservation(t *testing.T) {
	e, syms, p, _ := newChainEngine(t)
	toks, _ := chain(t, e, syms, p, 20)

	check := func() {
		t.Helper()
		require.GreaterOrEqual(t, p.LiveInstantiations(), 0)
		require.GreaterOrEqual(t, p.RefCount(), p.LiveInstantiations()+1)
		require.Equal(t, p.RefCount(), e.Live()+1)
	}
	check()
	for i := 19; i >= 0; i -= 3 {
		require.NoError(t, e.OnTokenRetracted(p, toks[i]))
		check()
	}
	for i := 0; i < 20; i++ {
		_ = e.OnTokenRetracted(p, toks[i])
		check()
	}
	assert.Equal(t, 0, e.Live())
	assert.Equal(t, 1, p.RefCount())
}
