package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
	"github.com/roach88/prodsys/internal/testutil"
)

func proposeWait(syms *symtab.Table, name, s, o string) *ir.Production {
	return testutil.Rule(syms, name).
		State(s, "name", "blocks").
		Neg(s, "operator", "*").
		Make(s, "operator", o, ir.AcceptablePref).
		Make(o, "name", "wait", ir.AcceptablePref).
		Build()
}

func TestFingerprint_Deterministic(t *testing.T) {
	syms := symtab.NewTable()
	p := proposeWait(syms, "propose*wait", "<s>", "<o>")

	first, err := ir.Fingerprint(p)
	require.NoError(t, err)
	again, err := ir.Fingerprint(p)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, first, 64)
}

func TestFingerprint_IgnoresNameAndVariableNames(t *testing.T) {
	syms := symtab.NewTable()
	a := proposeWait(syms, "propose*wait", "<s>", "<o>")
	b := proposeWait(syms, "wait*again", "<goal>", "<op>")
	b.Doc = "same rule, other names"

	fa, err := ir.Fingerprint(a)
	require.NoError(t, err)
	fb, err := ir.Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestFingerprint_ChangesWithStructure(t *testing.T) {
	syms := symtab.NewTable()
	base, err := ir.Fingerprint(proposeWait(syms, "p", "<s>", "<o>"))
	require.NoError(t, err)

	osupported := proposeWait(syms, "p", "<s>", "<o>")
	osupported.Support = ir.DeclaredOSupport
	chunk := proposeWait(syms, "p", "<s>", "<o>")
	chunk.Type = ir.ChunkProduction
	other := testutil.Rule(syms, "p").
		State("<s>", "name", "blocks").
		Neg("<s>", "operator", "*").
		Make("<s>", "operator", "<o>", ir.AcceptablePref).
		Make("<o>", "name", "stack", ir.AcceptablePref).
		Build()

	for name, p := range map[string]*ir.Production{
		"support": osupported,
		"type":    chunk,
		"action":  other,
	} {
		fp, err := ir.Fingerprint(p)
		require.NoError(t, err)
		assert.NotEqual(t, base, fp, name)
	}
}

func TestTraceHash(t *testing.T) {
	doc := map[string]any{"format": ir.FormatVersion, "productions": []any{}}
	h1, err := ir.TraceHash(doc)
	require.NoError(t, err)
	h2, err := ir.TraceHash(map[string]any{"productions": []any{}, "format": ir.FormatVersion})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	_, err = ir.TraceHash(map[string]any{"bad": 1.5})
	assert.ErrorContains(t, err, "TraceHash")
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "prodsys/production/v1", ir.DomainProduction)
	assert.Equal(t, "prodsys/trace/v1", ir.DomainTrace)
}
