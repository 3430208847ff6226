package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Interning
// ============================================================================

func TestTable_InternsConstantsOnce(t *testing.T) {
	tab := NewTable()

	a := tab.Str("foo")
	b := tab.Str("foo")
	assert.Same(t, a, b)
	assert.Equal(t, 2, a.RefCount())

	i1 := tab.Int(7)
	i2 := tab.Int(7)
	assert.Same(t, i1, i2)

	f1 := tab.Float(1.5)
	f2 := tab.Float(1.5)
	assert.Same(t, f1, f2)

	assert.NotSame(t, tab.Int(1), tab.Float(1))
}

func TestTable_NormalizesStrings(t *testing.T) {
	tab := NewTable()

	composed := tab.Str("caf\u00e9")
	decomposed := tab.Str("cafe\u0301")
	assert.Same(t, composed, decomposed)
}

func TestTable_IdentifierNaming(t *testing.T) {
	tab := NewTable()

	s1 := tab.NewIdentifier('s', 1)
	s2 := tab.NewIdentifier('S', 2)
	o1 := tab.NewIdentifier('o', 1)
	odd := tab.NewIdentifier('*', 1)

	assert.Equal(t, "S1", s1.String())
	assert.Equal(t, "S2", s2.String())
	assert.Equal(t, "O1", o1.String())
	assert.Equal(t, "I1", odd.String())
	assert.Equal(t, 2, s2.Level())
	assert.Same(t, s1, tab.FindIdentifier('s', 1))
}

func TestTable_GenerateVariableAvoidsExisting(t *testing.T) {
	tab := NewTable()
	tab.Var("<dummy-1>")

	v := tab.GenerateVariable("dummy-")
	assert.Equal(t, "<dummy-2>", v.Str())
}

func TestTable_GenerateConstant(t *testing.T) {
	tab := NewTable()
	tab.Str("constant1")

	c := tab.GenerateConstant("")
	assert.Equal(t, "constant2", c.Str())
}

// ============================================================================
// Reference counting
// ============================================================================

func TestTable_ReleaseRemovesAtZero(t *testing.T) {
	tab := NewTable()
	base := tab.Live()

	s := tab.Str("bar")
	tab.Retain(s)
	assert.Equal(t, base+1, tab.Live())

	tab.Release(s)
	assert.Equal(t, base+1, tab.Live())
	tab.Release(s)
	assert.Equal(t, base, tab.Live())

	again := tab.Str("bar")
	assert.NotSame(t, s, again, "a released symbol must not be resurrected")
}

func TestTable_ReleaseBelowZeroPanics(t *testing.T) {
	tab := NewTable()
	id := tab.NewIdentifier('S', 1)
	tab.Release(id)

	require.Panics(t, func() { tab.Release(id) })
}

// ============================================================================
// Hashing and rendering
// ============================================================================

func TestSymbol_VariablesShareHash(t *testing.T) {
	tab := NewTable()
	assert.Equal(t, tab.Var("<a>").Hash(), tab.Var("<zzz>").Hash())
	assert.NotEqual(t, tab.Str("a").Hash(), tab.Str("b").Hash())
}

func TestSymbol_String(t *testing.T) {
	tab := NewTable()

	tests := []struct {
		sym  *Symbol
		want string
	}{
		{tab.Str("foo"), "foo"},
		{tab.Str("hello world"), "|hello world|"},
		{tab.Str("12"), "|12|"},
		{tab.Str("S1"), "|S1|"},
		{tab.Int(-3), "-3"},
		{tab.Float(2), "2.0"},
		{tab.Float(0.25), "0.25"},
		{tab.Var("<x>"), "<x>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.sym.String())
	}
}

func TestSymbol_FirstLetter(t *testing.T) {
	tab := NewTable()
	assert.Equal(t, byte('o'), tab.Str("operator").FirstLetter())
	assert.Equal(t, byte('x'), tab.Var("<x>").FirstLetter())
	assert.Equal(t, byte('I'), tab.Int(4).FirstLetter())
}

func TestCompareNumeric(t *testing.T) {
	tab := NewTable()

	cmp, ok := CompareNumeric(tab.Int(1), tab.Float(1.5))
	require.True(t, ok)
	assert.Equal(t, -1, cmp)

	cmp, ok = CompareNumeric(tab.Int(4), tab.Int(4))
	require.True(t, ok)
	assert.Equal(t, 0, cmp)

	_, ok = CompareNumeric(tab.Str("a"), tab.Int(1))
	assert.False(t, ok)
}

// ============================================================================
// Parsing
// ============================================================================

func TestTable_Constant(t *testing.T) {
	tab := NewTable()
	tests := []struct {
		text string
		kind Kind
	}{
		{"42", IntConstantKind},
		{"-7", IntConstantKind},
		{"2.5", FloatConstantKind},
		{"1e3", FloatConstantKind},
		{"red", StrConstantKind},
		{"e", StrConstantKind},
		{"1.2.3", StrConstantKind},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := tab.Constant(tt.text)
			assert.Equal(t, tt.kind, s.Kind())
			tab.Release(s)
		})
	}
	assert.Equal(t, 0, tab.Live())
}

func TestTable_FindIdentifierName(t *testing.T) {
	tab := NewTable()
	s1 := tab.NewIdentifier('S', 1)

	assert.Same(t, s1, tab.FindIdentifierName("S1"))
	assert.Nil(t, tab.FindIdentifierName("S2"))
	assert.Nil(t, tab.FindIdentifierName("s1"))
	assert.Nil(t, tab.FindIdentifierName("S"))
	assert.Nil(t, tab.FindIdentifierName("Sx"))
	assert.Equal(t, 1, s1.RefCount())
}
