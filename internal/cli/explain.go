package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/store"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Database string
	Run      string
	Inst     uint64
}

// ExplainEntry is one instantiation in an explanation with what it
// matched and what it asserted.
type ExplainEntry struct {
	ir.ExplainStep
	Matched     []ir.BacktraceEdge   `json:"matched"`
	Preferences []ir.TracePreference `json:"preferences"`
}

// ExplainResult holds the explain command output.
type ExplainResult struct {
	Run   string         `json:"run"`
	Inst  uint64         `json:"inst"`
	Chain []ExplainEntry `json:"chain"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain why an instantiation fired",
		Long: `Walk the backtrace of a recorded instantiation: the elements its
conditions matched and, for each element made by another firing, that
firing's own justification. Input facts end the walk.

Examples:
  prodsys explain --db ./trace.db --run 0190... --inst 7`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run id (required)")
	cmd.Flags().Uint64Var(&opts.Inst, "inst", 0, "instantiation id (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("inst")

	return cmd
}

func runExplain(opts *ExplainOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := openTraceStore(opts.Database)
	if err != nil {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}
	defer st.Close()

	result, err := explain(cmd, st, opts.Run, opts.Inst)
	if errors.Is(err, sql.ErrNoRows) {
		msg := fmt.Sprintf("instantiation %d not found in run %s", opts.Inst, opts.Run)
		_ = f.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to explain", err)
	}
	return f.Success(result, explainText(result))
}

func explain(cmd *cobra.Command, st *store.Store, run string, inst uint64) (ExplainResult, error) {
	ctx := commandContext(cmd)
	result := ExplainResult{Run: run, Inst: inst}

	steps, err := st.Explain(ctx, run, inst)
	if err != nil {
		return result, err
	}
	for _, step := range steps {
		edges, err := st.ReadBacktrace(ctx, run, step.InstID)
		if err != nil {
			return result, err
		}
		prefs, err := st.ReadPreferences(ctx, run, step.InstID)
		if err != nil {
			return result, err
		}
		result.Chain = append(result.Chain, ExplainEntry{
			ExplainStep: step,
			Matched:     edges,
			Preferences: prefs,
		})
	}
	return result, nil
}

func explainText(r ExplainResult) string {
	var b strings.Builder
	for _, e := range r.Chain {
		indent := strings.Repeat("  ", e.Depth)
		fmt.Fprintf(&b, "%s[%d] %s\n", indent, e.InstID, e.Production)
		for _, m := range e.Matched {
			src := "input"
			if m.SourceInstID != 0 {
				src = fmt.Sprintf("from [%d]", m.SourceInstID)
			}
			fmt.Fprintf(&b, "%s    matched %s  (%s)\n", indent, m.WME, src)
		}
		for _, p := range e.Preferences {
			support := "i"
			if p.OSupported {
				support = "o"
			}
			fmt.Fprintf(&b, "%s    -> %s  [%s]\n", indent, p.Text, support)
		}
	}
	return b.String()
}
