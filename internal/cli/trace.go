package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/queryir"
	"github.com/roach88/prodsys/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Run      string
	Where    []string // field=value filters on the timeline
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	Events      int `json:"events"`
	Fired       int `json:"fired"`
	Retracted   int `json:"retracted"`
	Deallocated int `json:"deallocated"`
	Failures    int `json:"failures"`
}

// TraceResult is the timeline of one run.
type TraceResult struct {
	Run      ir.TraceRun       `json:"run"`
	Timeline []ir.TraceEvent   `json:"timeline"`
	Failures []ir.TraceFailure `json:"failures,omitempty"`
	Stats    TraceStats        `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs",
		Long: `Read a trace database written by run --db.

Without --run, lists the recorded runs. With --run, prints the run's
timeline of fired, retracted and deallocated instantiations and any
failed actions.

--where filters the timeline by field=value and may be repeated. Timeline
fields: seq, kind, inst_id, production, match_goal_level. Filters on
fields the failure log also has (seq, inst_id, production) apply to it
too.

Examples:
  prodsys trace --db ./trace.db
  prodsys trace --db ./trace.db --run 0190...
  prodsys trace --db ./trace.db --run 0190... --where production=count*apply --where kind=fired`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run id")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "timeline filter field=value (repeatable)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openTraceStore opens an existing trace database. store.Open would
// create a missing one.
func openTraceStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("trace database not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	return st, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := openTraceStore(opts.Database)
	if err != nil {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}
	defer st.Close()
	ctx := commandContext(cmd)

	if opts.Run == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return f.Success(runs, runsText(runs))
	}

	run, err := st.ReadRun(ctx, opts.Run)
	if errors.Is(err, sql.ErrNoRows) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("run %s not found", opts.Run), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", opts.Run))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	timeline, _ := queryir.LookupSource(queryir.Timeline)
	filter, err := queryir.ParseFilter(timeline, opts.Where)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, fmt.Sprintf("invalid --where: %v", err), nil)
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}
	events, err := st.QueryEvents(ctx, opts.Run, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	failureLog, _ := queryir.LookupSource(queryir.Failures)
	failures, err := st.QueryFailures(ctx, opts.Run, queryir.Restrict(filter, failureLog))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read failures", err)
	}

	result := buildTraceResult(run, events, failures)
	return f.Success(result, traceText(result))
}

func buildTraceResult(run ir.TraceRun, events []ir.TraceEvent, failures []ir.TraceFailure) TraceResult {
	result := TraceResult{Run: run, Timeline: events, Failures: failures}
	for _, ev := range events {
		switch ev.Kind {
		case ir.EventFired:
			result.Stats.Fired++
		case ir.EventRetracted:
			result.Stats.Retracted++
		case ir.EventDeallocated:
			result.Stats.Deallocated++
		}
	}
	result.Stats.Events = len(result.Timeline)
	result.Stats.Failures = len(result.Failures)
	return result
}

func runsText(runs []ir.TraceRun) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	for _, r := range runs {
		hash := r.RulesHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(&b, "%s  %s  %s\n", r.ID, hash, r.Source)
	}
	return b.String()
}

func traceText(r TraceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n\n", r.Run.ID, r.Run.Source)
	for _, ev := range r.Timeline {
		fmt.Fprintf(&b, "  %4d  %-11s  [%d] %s\n", ev.Seq, ev.Kind, ev.InstID, ev.Production)
	}
	if len(r.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, fl := range r.Failures {
			fmt.Fprintf(&b, "  %4d  [%d] %s: %s %s\n", fl.Seq, fl.InstID, fl.Production, fl.Code, fl.Message)
		}
	}
	fmt.Fprintf(&b, "\n%d event(s): %d fired, %d retracted, %d deallocated, %d failure(s)\n",
		r.Stats.Events, r.Stats.Fired, r.Stats.Retracted, r.Stats.Deallocated, r.Stats.Failures)
	return b.String()
}
