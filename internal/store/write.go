package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/prodsys/internal/ir"
)

// WriteRun inserts a run record. Writing the same run twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run ir.TraceRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, source, rules_hash, engine_version, format_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Source,
		run.RulesHash,
		run.EngineVersion,
		run.FormatVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteFiring records a fired instantiation, the preferences it generated
// and its backtrace edges in one transaction, followed by its fired event
// at seq.
func (s *Store) WriteFiring(ctx context.Context, run string, seq int64, inst *ir.Instantiation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write firing: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	ti := traceInstantiation(run, inst)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO instantiations
		(run_id, inst_id, production, token_key, match_goal_level)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, inst_id) DO NOTHING
	`, ti.RunID, int64(ti.InstID), ti.Production, ti.TokenKey, ti.MatchGoalLevel)
	if err != nil {
		return fmt.Errorf("write firing: instantiation: %w", err)
	}

	for _, p := range tracePreferences(inst) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO preferences
			(run_id, inst_id, ordinal, text, o_supported)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, run, int64(p.InstID), p.Ordinal, p.Text, boolInt(p.OSupported))
		if err != nil {
			return fmt.Errorf("write firing: preference %d: %w", p.Ordinal, err)
		}
	}

	for _, e := range backtraceEdges(inst) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO backtrace_edges
			(run_id, inst_id, cond_index, wme, source_inst_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, run, int64(e.InstID), e.CondIndex, e.WME, nullableInstID(e.SourceInstID))
		if err != nil {
			return fmt.Errorf("write firing: edge %d: %w", e.CondIndex, err)
		}
	}

	if err := writeEvent(ctx, tx, run, seq, ir.EventFired, inst.ID); err != nil {
		return fmt.Errorf("write firing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write firing: commit: %w", err)
	}
	return nil
}

// WriteEvent records a retracted or deallocated transition. The
// instantiation must already have been written by WriteFiring.
func (s *Store) WriteEvent(ctx context.Context, run string, seq int64, kind ir.TraceEventKind, instID uint64) error {
	if err := writeEvent(ctx, s.db, run, seq, kind, instID); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeEvent(ctx context.Context, db execer, run string, seq int64, kind ir.TraceEventKind, instID uint64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, kind, inst_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, run, seq, string(kind), int64(instID))
	return err
}

// WriteFailure records a failed action.
func (s *Store) WriteFailure(ctx context.Context, run string, f ir.TraceFailure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures
		(run_id, seq, inst_id, production, code, message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, run, f.Seq, int64(f.InstID), f.Production, f.Code, f.Message)
	if err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}
