package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/rhs"
	"github.com/roach88/prodsys/internal/symtab"
	"github.com/roach88/prodsys/internal/testutil"
)

func newRegistry() (*Registry, *symtab.Table) {
	syms := symtab.NewTable()
	return New(syms, rhs.NewLibrary()), syms
}

func elaborate(syms *symtab.Table, name, s, v string) *ir.Production {
	return testutil.Rule(syms, name).
		State(s, "foo", v).
		Make(s, "bar", v, ir.AcceptablePref).
		Build()
}

func TestRegister_CatalogsProduction(t *testing.T) {
	reg, syms := newRegistry()

	p, err := reg.Register(elaborate(syms, "r1", "<s>", "<x>"))
	require.NoError(t, err)

	assert.Equal(t, 1, p.RefCount())
	assert.Len(t, p.Fingerprint, 64)
	assert.Equal(t, 0, p.LiveInstantiations())
	assert.Equal(t, []*ir.Production{p}, reg.All())
	assert.Equal(t, []*ir.Production{p}, reg.ByType(ir.UserProduction))
	assert.Empty(t, reg.ByType(ir.ChunkProduction))
	assert.Equal(t, map[ir.ProductionType]int{ir.UserProduction: 1}, reg.Count())

	got, err := reg.Lookup("r1")
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = reg.Lookup("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegister_DuplicateUpToRenaming(t *testing.T) {
	reg, syms := newRegistry()

	first, err := reg.Register(elaborate(syms, "r1", "<s>", "<x>"))
	require.NoError(t, err)

	dup := elaborate(syms, "r2", "<goal>", "<val>")
	got, err := reg.Register(dup)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Same(t, first, got)
	assert.Equal(t, uint64(1), first.DuplicateCount)
	assert.Equal(t, 1, reg.Len())

	dup.Release(syms)
}

func TestRegister_NameInUse(t *testing.T) {
	reg, syms := newRegistry()

	_, err := reg.Register(elaborate(syms, "r1", "<s>", "<x>"))
	require.NoError(t, err)

	other := testutil.Rule(syms, "r1").
		State("<s>", "other", "1").
		Make("<s>", "baz", "2", ir.AcceptablePref).
		Build()
	_, err = reg.Register(other)
	assert.ErrorIs(t, err, ErrNameInUse)
}

func TestRegister_EncodeErrorRejects(t *testing.T) {
	reg, syms := newRegistry()

	p := testutil.Rule(syms, "bad").
		State("<s>", "a", "b").
		Make("<s>", "c", "(nope 1)", ir.AcceptablePref).
		Build()

	_, err := reg.Register(p)
	require.Error(t, err)
	assert.True(t, rhs.IsEncodeError(err))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_LinkUnlink(t *testing.T) {
	reg, syms := newRegistry()
	p, err := reg.Register(elaborate(syms, "r1", "<s>", "<x>"))
	require.NoError(t, err)

	a := &ir.Instantiation{ID: 1, Prod: p}
	b := &ir.Instantiation{ID: 2, Prod: p}
	reg.Link(a)
	reg.Link(b)
	reg.Link(a) // already linked

	var ids []uint64
	p.EachInstantiation(func(i *ir.Instantiation) { ids = append(ids, i.ID) })
	assert.Equal(t, []uint64{1, 2}, ids)

	reg.Unlink(a)
	reg.Unlink(a)
	assert.Equal(t, 1, p.LiveInstantiations())
	assert.Nil(t, a.ProdElem)
}

func TestRegistry_ExciseReleasesSymbols(t *testing.T) {
	reg, syms := newRegistry()
	p, err := reg.Register(elaborate(syms, "r1", "<s>", "<x>"))
	require.NoError(t, err)

	assert.True(t, reg.Excise(p))
	assert.False(t, reg.Excise(p))

	assert.True(t, p.Excised)
	assert.Equal(t, 0, p.RefCount())
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, syms.Live())
}

func TestRegistry_ExciseKeepsProductionForLingeringInstantiations(t *testing.T) {
	reg, syms := newRegistry()
	p, err := reg.Register(elaborate(syms, "r1", "<s>", "<x>"))
	require.NoError(t, err)

	reg.AddRef(p) // an instantiation that outlived its match
	reg.Excise(p)
	assert.Equal(t, 1, p.RefCount())
	assert.NotNil(t, p.Conds)

	assert.True(t, reg.RemoveRef(p))
	assert.Nil(t, p.Conds)
	assert.Equal(t, 0, syms.Live())
}

func TestRegistry_ExciseWithLiveInstantiationsPanics(t *testing.T) {
	reg, syms := newRegistry()
	p, err := reg.Register(elaborate(syms, "r1", "<s>", "<x>"))
	require.NoError(t, err)

	reg.Link(&ir.Instantiation{ID: 1, Prod: p})
	assert.Panics(t, func() { reg.Excise(p) })
}
