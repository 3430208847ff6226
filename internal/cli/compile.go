package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prodsys/internal/agent"
	"github.com/roach88/prodsys/internal/compiler"
	"github.com/roach88/prodsys/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	OutputFile string
}

// CompiledProduction describes one registered production.
type CompiledProduction struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Fingerprint string   `json:"fingerprint"`
	Conditions  []string `json:"conditions"`
	Actions     int      `json:"actions"`
}

// CompileResult holds the compile command output.
type CompileResult struct {
	Productions []CompiledProduction    `json:"productions"`
	Duplicates  []string                `json:"duplicates,omitempty"`
	Warnings    []compiler.CycleWarning `json:"warnings,omitempty"`
	OutputFile  string                  `json:"output_file,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rules>...",
		Short: "Compile, reorder and register rule files",
		Long: `Compile rule files the way run loads them: validate, reorder the
conditions and register each production. Prints the reordered conditions
and fingerprint of every production. With --output the reordered rules
are written in sp {...} form.

Examples:
  prodsys compile ./rules
  prodsys compile count.cue -o count.soar`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "", "write reordered rules to file")
	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	files, err := FindRuleFiles(paths)
	if err != nil {
		return outputLoadError(f, err)
	}

	a, err := agent.New(cfg, agent.WithLogger(newLogger(opts.RootOptions, cfg, f.GetErrWriter())))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create agent", err)
	}
	defer a.Close()

	result := CompileResult{Productions: []CompiledProduction{}}
	for _, file := range files {
		f.VerboseLog("Compiling %s", file)
		lr, err := a.LoadFile(file)
		if err != nil {
			if ferr := f.Error(ErrCodeCompileFailed, err.Error(), nil); ferr != nil {
				return ferr
			}
			return WrapExitError(ExitFailure, "compilation failed", err)
		}
		result.Duplicates = append(result.Duplicates, lr.Duplicates...)
		result.Warnings = append(result.Warnings, lr.Warnings...)
	}

	prods := a.Registry().All()
	for _, p := range prods {
		result.Productions = append(result.Productions, CompiledProduction{
			Name:        p.Name,
			Type:        p.Type.String(),
			Fingerprint: p.Fingerprint,
			Conditions:  ir.RenderConditions(p.Conds),
			Actions:     len(p.Actions),
		})
	}

	if opts.OutputFile != "" {
		if err := writeRendered(opts.OutputFile, prods); err != nil {
			if ferr := f.Error(ErrCodeWriteFailed, err.Error(), nil); ferr != nil {
				return ferr
			}
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		result.OutputFile = opts.OutputFile
	}

	return f.Success(result, compileText(result))
}

func writeRendered(path string, prods []*ir.Production) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, p := range prods {
		if _, err := io.WriteString(out, ir.Render(p)+"\n"); err != nil {
			out.Close()
			return err
		}
	}
	return out.Close()
}

func compileText(r CompileResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Compiled %d production(s)\n\n", len(r.Productions))
	for _, p := range r.Productions {
		fmt.Fprintf(&b, "  %s [%s] %s\n", p.Name, p.Type, p.Fingerprint[:12])
		for _, c := range p.Conditions {
			fmt.Fprintf(&b, "      %s\n", c)
		}
	}
	for _, d := range r.Duplicates {
		fmt.Fprintf(&b, "  ! %s duplicates a production already loaded\n", d)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  ! %s cycle: %s\n", w.Level, strings.Join(w.Path, " -> "))
	}
	if r.OutputFile != "" {
		fmt.Fprintf(&b, "\nWrote reordered rules to %s\n", r.OutputFile)
	}
	return b.String()
}
