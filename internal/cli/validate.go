package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prodsys/internal/compiler"
	"github.com/roach88/prodsys/internal/symtab"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Files       int                        `json:"files"`
	Productions int                        `json:"productions"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
	Warnings    []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules>...",
		Short: "Check rule files without loading them",
		Long: `Compile rule files and run the rule-set checks without reordering
or registering anything. Every error is reported, not just the first.
Rule cycles are reported as warnings.

Examples:
  prodsys validate ./rules
  prodsys validate count.cue blocks.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	files, err := FindRuleFiles(paths)
	if err != nil {
		return outputLoadError(f, err)
	}
	f.VerboseLog("Found %d rule file(s)", len(files))

	syms := symtab.NewTable()
	prods, loadErrs := compileAll(syms, files)
	defer func() {
		for _, p := range prods {
			p.Release(syms)
		}
	}()

	result := ValidationResult{Files: len(files), Productions: len(prods)}
	for _, le := range loadErrs {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "compile",
			Message: le.Error(),
			Code:    le.Code,
		})
	}
	result.Errors = append(result.Errors, compiler.Validate(prods)...)
	result.Warnings = compiler.AnalyzeCycles(prods)
	result.Valid = len(result.Errors) == 0

	if err := f.Success(result, validationText(result)); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func validationText(r ValidationResult) string {
	var b strings.Builder
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  ✗ %s\n", e.Error())
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  ! %s cycle: %s\n", w.Level, strings.Join(w.Path, " -> "))
	}
	if r.Valid {
		fmt.Fprintf(&b, "✓ %d production(s) in %d file(s) are valid\n", r.Productions, r.Files)
	} else {
		fmt.Fprintf(&b, "✗ %d error(s) in %d file(s)\n", len(r.Errors), r.Files)
	}
	return b.String()
}

// outputLoadError reports a rule-file lookup failure as a command error.
func outputLoadError(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
	}
	if ferr := f.Error(code, err.Error(), nil); ferr != nil {
		return ferr
	}
	return WrapExitError(ExitCommandError, "cannot load rules", err)
}
