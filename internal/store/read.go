package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/prodsys/internal/ir"
)

// ReadRun retrieves a run by ID. Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.TraceRun, error) {
	var run ir.TraceRun
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, rules_hash, engine_version, format_version
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Source, &run.RulesHash, &run.EngineVersion, &run.FormatVersion)
	if err != nil {
		return ir.TraceRun{}, err
	}
	return run, nil
}

// ListRuns returns every run in the order they were written.
func (s *Store) ListRuns(ctx context.Context) ([]ir.TraceRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, rules_hash, engine_version, format_version
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.TraceRun{}
	for rows.Next() {
		var run ir.TraceRun
		if err := rows.Scan(&run.ID, &run.Source, &run.RulesHash, &run.EngineVersion, &run.FormatVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the lifecycle events of a run in sequence order.
// Returns an empty slice if the run recorded nothing.
func (s *Store) ReadEvents(ctx context.Context, run string) ([]ir.TraceEvent, error) {
	return s.QueryEvents(ctx, run, nil)
}

// ReadInstantiation retrieves one recorded instantiation. Returns
// sql.ErrNoRows if not found.
func (s *Store) ReadInstantiation(ctx context.Context, run string, instID uint64) (ir.TraceInstantiation, error) {
	ti := ir.TraceInstantiation{RunID: run, InstID: instID}
	err := s.db.QueryRowContext(ctx, `
		SELECT production, token_key, match_goal_level
		FROM instantiations
		WHERE run_id = ? AND inst_id = ?
	`, run, int64(instID)).Scan(&ti.Production, &ti.TokenKey, &ti.MatchGoalLevel)
	if err != nil {
		return ir.TraceInstantiation{}, err
	}
	return ti, nil
}

// ReadPreferences returns the preferences an instantiation generated, in
// generation order.
func (s *Store) ReadPreferences(ctx context.Context, run string, instID uint64) ([]ir.TracePreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, text, o_supported
		FROM preferences
		WHERE run_id = ? AND inst_id = ?
		ORDER BY ordinal ASC
	`, run, int64(instID))
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	prefs := []ir.TracePreference{}
	for rows.Next() {
		p := ir.TracePreference{InstID: instID}
		var osup int
		if err := rows.Scan(&p.Ordinal, &p.Text, &osup); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		p.OSupported = osup != 0
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return prefs, nil
}

// ReadBacktrace returns the backtrace edges of an instantiation in
// condition order.
func (s *Store) ReadBacktrace(ctx context.Context, run string, instID uint64) ([]ir.BacktraceEdge, error) {
	return s.queryEdges(ctx, `
		SELECT inst_id, cond_index, wme, source_inst_id
		FROM backtrace_edges
		WHERE run_id = ? AND inst_id = ?
		ORDER BY cond_index ASC
	`, run, int64(instID))
}

// Dependents returns the edges of every instantiation that matched an
// element supported by instID.
func (s *Store) Dependents(ctx context.Context, run string, instID uint64) ([]ir.BacktraceEdge, error) {
	return s.queryEdges(ctx, `
		SELECT inst_id, cond_index, wme, source_inst_id
		FROM backtrace_edges
		WHERE run_id = ? AND source_inst_id = ?
		ORDER BY inst_id ASC, cond_index ASC
	`, run, int64(instID))
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]ir.BacktraceEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query backtrace: %w", err)
	}
	defer rows.Close()

	edges := []ir.BacktraceEdge{}
	for rows.Next() {
		var (
			e      ir.BacktraceEdge
			id     int64
			source sql.NullInt64
		)
		if err := rows.Scan(&id, &e.CondIndex, &e.WME, &source); err != nil {
			return nil, fmt.Errorf("scan backtrace edge: %w", err)
		}
		e.InstID = uint64(id)
		if source.Valid {
			e.SourceInstID = uint64(source.Int64)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtrace: %w", err)
	}
	return edges, nil
}

// ReadFailures returns the failed actions of a run in sequence order.
func (s *Store) ReadFailures(ctx context.Context, run string) ([]ir.TraceFailure, error) {
	return s.QueryFailures(ctx, run, nil)
}

// Explain lists instID and every recorded instantiation it transitively
// depends on through backtrace edges, each at its shortest distance.
// Sources that were never recorded, such as input facts, are omitted.
// Returns sql.ErrNoRows if instID was not recorded in run.
func (s *Store) Explain(ctx context.Context, run string, instID uint64) ([]ir.ExplainStep, error) {
	if _, err := s.ReadInstantiation(ctx, run, instID); err != nil {
		return nil, err
	}

	// Trace sources always precede their dependents, so the walk ends.
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE chain(inst_id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT e.source_inst_id, c.depth + 1
			FROM backtrace_edges e
			JOIN chain c ON e.inst_id = c.inst_id
			WHERE e.run_id = ? AND e.source_inst_id IS NOT NULL
		)
		SELECT i.inst_id, i.production, MIN(c.depth) AS depth
		FROM chain c
		JOIN instantiations i ON i.run_id = ? AND i.inst_id = c.inst_id
		GROUP BY i.inst_id, i.production
		ORDER BY depth ASC, i.inst_id ASC
	`, int64(instID), run, run)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	steps := []ir.ExplainStep{}
	for rows.Next() {
		var (
			st ir.ExplainStep
			id int64
		)
		if err := rows.Scan(&id, &st.Production, &st.Depth); err != nil {
			return nil, fmt.Errorf("explain: scan: %w", err)
		}
		st.InstID = uint64(id)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: iterate: %w", err)
	}
	return steps, nil
}
