package store

import (
	"context"
	"log/slog"

	"github.com/roach88/prodsys/internal/engine"
	"github.com/roach88/prodsys/internal/ir"
)

// Recorder writes engine lifecycle callbacks into a run. Callbacks cannot
// return errors, so the first write error is kept and every later
// callback is dropped; Err reports it.
//
// A Recorder is driven by the engine goroutine and is not safe for
// concurrent use.
type Recorder struct {
	store  *Store
	ctx    context.Context
	run    string
	logger *slog.Logger

	seq      int64
	recorded map[uint64]bool
	err      error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used to report write errors.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// StartRun writes run and returns a recorder appending to it. ctx bounds
// every write the recorder makes.
func (s *Store) StartRun(ctx context.Context, run ir.TraceRun, opts ...RecorderOption) (*Recorder, error) {
	if run.EngineVersion == "" {
		run.EngineVersion = ir.EngineVersion
	}
	if run.FormatVersion == "" {
		run.FormatVersion = ir.FormatVersion
	}
	if err := s.WriteRun(ctx, run); err != nil {
		return nil, err
	}
	r := &Recorder{
		store:    s,
		ctx:      ctx,
		run:      run.ID,
		logger:   slog.Default(),
		recorded: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run returns the run ID.
func (r *Recorder) Run() string { return r.run }

// Err returns the first write error, if any.
func (r *Recorder) Err() error { return r.err }

func (r *Recorder) next() int64 {
	r.seq++
	return r.seq
}

func (r *Recorder) fail(err error) {
	r.err = err
	r.logger.Warn("trace recording stopped", "run", r.run, "error", err)
}

// ProductionFired implements engine.Listener.
func (r *Recorder) ProductionFired(inst *ir.Instantiation) {
	if r.err != nil {
		return
	}
	if err := r.store.WriteFiring(r.ctx, r.run, r.next(), inst); err != nil {
		r.fail(err)
		return
	}
	r.recorded[inst.ID] = true
}

// ProductionRetracted implements engine.Listener.
func (r *Recorder) ProductionRetracted(inst *ir.Instantiation) {
	r.event(ir.EventRetracted, inst)
}

// InstantiationDeallocated implements engine.DeallocationListener.
func (r *Recorder) InstantiationDeallocated(inst *ir.Instantiation) {
	r.event(ir.EventDeallocated, inst)
	delete(r.recorded, inst.ID)
}

func (r *Recorder) event(kind ir.TraceEventKind, inst *ir.Instantiation) {
	if r.err != nil || !r.recorded[inst.ID] {
		return
	}
	if err := r.store.WriteEvent(r.ctx, r.run, r.next(), kind, inst.ID); err != nil {
		r.fail(err)
	}
}

// ActionFailed implements engine.FailureListener.
func (r *Recorder) ActionFailed(inst *ir.Instantiation, rerr *engine.RuntimeError) {
	if r.err != nil {
		return
	}
	f := ir.TraceFailure{
		Seq:        r.next(),
		InstID:     inst.ID,
		Production: inst.Name(),
		Code:       string(rerr.Code),
		Message:    rerr.Error(),
	}
	if err := r.store.WriteFailure(r.ctx, r.run, f); err != nil {
		r.fail(err)
	}
}

var (
	_ engine.Listener             = (*Recorder)(nil)
	_ engine.DeallocationListener = (*Recorder)(nil)
	_ engine.FailureListener      = (*Recorder)(nil)
)
