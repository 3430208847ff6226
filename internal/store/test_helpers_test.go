package store

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/engine"
	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/registry"
	"github.com/roach88/prodsys/internal/reorder"
	"github.com/roach88/prodsys/internal/rhs"
	"github.com/roach88/prodsys/internal/symtab"
	"github.com/roach88/prodsys/internal/testutil"
	"github.com/roach88/prodsys/internal/wm"
)

// createTestStore opens a fresh database under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// world is an engine wired to a recorder.
type world struct {
	syms *symtab.Table
	reg  *registry.Registry
	mem  *wm.Memory
	eng  *engine.Engine
	rec  *Recorder
	goal *symtab.Symbol
	logs *bytes.Buffer
}

func newWorld(t *testing.T, s *Store, run string) *world {
	t.Helper()
	syms := symtab.NewTable()
	w := &world{
		syms: syms,
		reg:  registry.New(syms, rhs.NewLibrary(), registry.WithLogger(quietLogger())),
		mem:  wm.New(syms, wm.WithLogger(quietLogger())),
		logs: &bytes.Buffer{},
	}
	rec, err := s.StartRun(context.Background(), ir.TraceRun{ID: run, Source: "test"},
		WithRecorderLogger(slog.New(slog.NewTextHandler(w.logs, nil))))
	require.NoError(t, err)
	w.rec = rec
	w.eng = engine.New(syms, w.reg, w.mem,
		engine.WithLogger(quietLogger()),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithListener(rec))
	w.goal = w.mem.PushGoal()
	return w
}

func (w *world) register(t *testing.T, b *testutil.RuleBuilder) *ir.Production {
	t.Helper()
	p := b.Build()
	require.NoError(t, reorder.New(w.syms).Reorder(p, reorder.Params{}))
	got, err := w.reg.Register(p)
	require.NoError(t, err)
	return got
}

func (w *world) fact(t *testing.T, attr, value string) *ir.WME {
	t.Helper()
	a, v := testutil.Sym(w.syms, attr), testutil.Sym(w.syms, value)
	wme, err := w.mem.AddFact(w.goal, a, v)
	require.NoError(t, err)
	w.syms.Release(a)
	w.syms.Release(v)
	return wme
}

// find returns the element (goal ^attr value) built from plain text.
func (w *world) find(t *testing.T, attr, value string) *ir.WME {
	t.Helper()
	a, v := testutil.Sym(w.syms, attr), testutil.Sym(w.syms, value)
	defer w.syms.Release(a)
	defer w.syms.Release(v)
	wme := w.mem.Find(w.goal, a, v)
	require.NotNil(t, wme, "(%s ^%s %s)", w.goal, attr, value)
	return wme
}
