package store

import (
	"context"
	"fmt"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/queryir"
	"github.com/roach88/prodsys/internal/querysql"
)

// runParam is the parameter every trace query binds the run id to.
const runParam = "run"

// compile scopes filter to run and compiles a select of fields from src.
func compile(src, run string, filter queryir.Predicate, fields ...string) (string, []any, error) {
	q := queryir.Select{
		From:   src,
		Filter: queryir.Conjoin(queryir.BoundEquals{Field: "run_id", Param: runParam}, filter),
		Fields: fields,
	}
	return querysql.NewSQLCompiler().Bind(runParam, run).Compile(q)
}

// QueryEvents returns the events of a run that satisfy filter, in
// sequence order. A nil filter returns every event.
func (s *Store) QueryEvents(ctx context.Context, run string, filter queryir.Predicate) ([]ir.TraceEvent, error) {
	query, args, err := compile(queryir.Timeline, run, filter, "seq", "kind", "inst_id", "production")
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.TraceEvent{}
	for rows.Next() {
		var (
			ev   ir.TraceEvent
			kind string
			id   int64
		)
		if err := rows.Scan(&ev.Seq, &kind, &id, &ev.Production); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = ir.TraceEventKind(kind)
		ev.InstID = uint64(id)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// QueryFailures returns the failed actions of a run that satisfy filter,
// in sequence order.
func (s *Store) QueryFailures(ctx context.Context, run string, filter queryir.Predicate) ([]ir.TraceFailure, error) {
	query, args, err := compile(queryir.Failures, run, filter, "seq", "inst_id", "production", "code", "message")
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	failures := []ir.TraceFailure{}
	for rows.Next() {
		var (
			f  ir.TraceFailure
			id int64
		)
		if err := rows.Scan(&f.Seq, &id, &f.Production, &f.Code, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.InstID = uint64(id)
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}
