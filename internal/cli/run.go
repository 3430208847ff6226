package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/prodsys/internal/agent"
	"github.com/roach88/prodsys/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database     string
	Facts        []string
	MaxDecisions int
}

// RunSummary is the run command output.
type RunSummary struct {
	RunID        string   `json:"run_id"`
	Decisions    int      `json:"decisions"`
	Waves        int      `json:"waves"`
	Fired        int      `json:"fired"`
	Retracted    int      `json:"retracted"`
	Oscillations int      `json:"oscillations"`
	Selected     []string `json:"selected,omitempty"`
	Halted       bool     `json:"halted"`
	Quiescent    bool     `json:"quiescent"`
	Error        string   `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <rules>...",
		Short: "Load rules and run decision cycles",
		Long: `Load rule files into a fresh agent, add the given input facts to
the top goal and run decisions until the agent halts, goes quiescent or
reaches the decision limit. Text written by the rules goes to stdout, or
to stderr with --format json.

Facts are written attr=value, or ID.attr=value for another identifier.

Examples:
  prodsys run ./rules --fact start=yes
  prodsys run count.cue --fact start=yes --db ./trace.db
  prodsys run ./rules -c prodsys.yaml --max-decisions 50 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite trace database")
	cmd.Flags().StringArrayVar(&opts.Facts, "fact", nil, "input fact attr=value (repeatable)")
	cmd.Flags().IntVar(&opts.MaxDecisions, "max-decisions", 0, "override the decision limit")

	return cmd
}

func runAgent(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.TraceDB = opts.Database
	}
	if opts.MaxDecisions > 0 {
		cfg.MaxDecisions = opts.MaxDecisions
	}
	files, err := FindRuleFiles(paths)
	if err != nil {
		return outputLoadError(f, err)
	}
	inputs, err := parseFacts(opts.Facts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --fact", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if f.JSON() {
		out = cmd.ErrOrStderr()
	}
	a, err := agent.New(cfg,
		agent.WithLogger(newLogger(opts.RootOptions, cfg, f.GetErrWriter())),
		agent.WithOutput(out))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create agent", err)
	}
	defer a.Close()

	for _, file := range files {
		f.VerboseLog("Loading %s", file)
		if _, err := a.LoadFile(file); err != nil {
			if ferr := f.Error(ErrCodeCompileFailed, err.Error(), nil); ferr != nil {
				return ferr
			}
			return WrapExitError(ExitFailure, "failed to load rules", err)
		}
	}
	for _, in := range inputs {
		a.Enqueue(in)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := a.Run(ctx)
	summary := RunSummary{
		RunID:        res.RunID,
		Decisions:    res.Decisions,
		Waves:        res.Waves,
		Fired:        res.Fired,
		Retracted:    res.Retracted,
		Oscillations: res.Oscillations,
		Selected:     res.Selected,
		Halted:       res.Halted,
		Quiescent:    res.Quiescent,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := f.Success(summary, runText(summary)); err != nil {
		return err
	}

	switch {
	case runErr == nil:
		return nil
	case engine.IsQuotaError(runErr):
		return WrapExitError(ExitFailure, "run stopped", runErr)
	default:
		return WrapExitError(ExitCommandError, "run failed", runErr)
	}
}

// parseFacts turns attr=value and ID.attr=value flags into inputs.
func parseFacts(facts []string) ([]agent.Input, error) {
	inputs := make([]agent.Input, 0, len(facts))
	for _, fact := range facts {
		lhs, value, ok := strings.Cut(fact, "=")
		if !ok || lhs == "" || value == "" {
			return nil, fmt.Errorf("%q: want attr=value or ID.attr=value", fact)
		}
		in := agent.Input{Op: agent.InputAdd, Attr: lhs, Value: value}
		if id, attr, found := strings.Cut(lhs, "."); found {
			if id == "" || attr == "" {
				return nil, fmt.Errorf("%q: want ID.attr=value", fact)
			}
			in.ID, in.Attr = id, attr
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func runText(s RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", s.RunID)
	fmt.Fprintf(&b, "  decisions: %d  waves: %d  fired: %d  retracted: %d\n",
		s.Decisions, s.Waves, s.Fired, s.Retracted)
	if len(s.Selected) > 0 {
		fmt.Fprintf(&b, "  operators: %s\n", strings.Join(s.Selected, " "))
	}
	if s.Oscillations > 0 {
		fmt.Fprintf(&b, "  oscillations: %d\n", s.Oscillations)
	}
	switch {
	case s.Error != "":
		fmt.Fprintf(&b, "✗ stopped: %s\n", s.Error)
	case s.Halted:
		b.WriteString("✓ halted\n")
	case s.Quiescent:
		b.WriteString("✓ quiescent\n")
	default:
		b.WriteString("✓ decision limit reached\n")
	}
	return b.String()
}
