package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/queryir"
	"github.com/roach88/prodsys/internal/testutil"
)

func TestQueryEvents_Filters(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	w := newWorld(t, s, testRun)

	r1 := w.register(t, testutil.Rule(w.syms, "first").
		State("<s>", "foo", "1").
		Make("<s>", "bar", "2", ir.AcceptablePref))
	r2 := w.register(t, testutil.Rule(w.syms, "second").
		State("<s>", "bar", "2").
		Make("<s>", "baz", "3", ir.AcceptablePref))

	foo := w.fact(t, "foo", "1")
	i1, err := w.eng.OnTokenMatched(r1, ir.Token{foo})
	require.NoError(t, err)
	bar := w.find(t, "bar", "2")
	_, err = w.eng.OnTokenMatched(r2, ir.Token{bar})
	require.NoError(t, err)
	require.NoError(t, w.eng.OnTokenRetracted(r2, ir.Token{bar}))
	require.NoError(t, w.rec.Err())

	fired, err := s.QueryEvents(ctx, testRun, queryir.Equals{Field: "kind", Value: "fired"})
	require.NoError(t, err)
	require.Len(t, fired, 2)
	assert.Equal(t, "first", fired[0].Production)
	assert.Equal(t, "second", fired[1].Production)

	second, err := s.QueryEvents(ctx, testRun, queryir.Equals{Field: "production", Value: "second"})
	require.NoError(t, err)
	kinds := make([]ir.TraceEventKind, len(second))
	for i, ev := range second {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []ir.TraceEventKind{ir.EventFired, ir.EventRetracted, ir.EventDeallocated}, kinds)

	byInst, err := s.QueryEvents(ctx, testRun, queryir.Conjoin(
		queryir.Equals{Field: "inst_id", Value: int64(i1.ID)},
		queryir.Equals{Field: "match_goal_level", Value: int64(1)},
	))
	require.NoError(t, err)
	require.Len(t, byInst, 1)
	assert.Equal(t, i1.ID, byInst[0].InstID)

	other, err := s.QueryEvents(ctx, "another-run", nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestQueryEvents_InvalidFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.QueryEvents(context.Background(), testRun, queryir.Equals{Field: "color", Value: "red"})
	assert.ErrorContains(t, err, `timeline has no field "color"`)

	_, err = s.QueryEvents(context.Background(), testRun, queryir.Equals{Field: "seq", Value: "one"})
	assert.ErrorContains(t, err, `field "seq" is int, compared to string`)
}

func TestQueryFailures_Filters(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_ = newWorld(t, s, testRun)

	require.NoError(t, s.WriteFailure(ctx, testRun, ir.TraceFailure{Seq: 1, InstID: 1, Production: "a", Code: "E1", Message: "boom"}))
	require.NoError(t, s.WriteFailure(ctx, testRun, ir.TraceFailure{Seq: 2, InstID: 2, Production: "b", Code: "E1", Message: "bang"}))

	all, err := s.ReadFailures(ctx, testRun)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyB, err := s.QueryFailures(ctx, testRun, queryir.Equals{Field: "production", Value: "b"})
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, "bang", onlyB[0].Message)
}
