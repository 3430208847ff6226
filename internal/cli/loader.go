package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue/token"

	"github.com/roach88/prodsys/internal/compiler"
	"github.com/roach88/prodsys/internal/config"
	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/symtab"
)

// Error code constants, shared by every command. Rule validation codes
// (E101 and up) come from the compiler.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeCompileFailed = "E004" // Rule file failed to compile
	ErrCodeNotFound      = "E005" // Path, run or instantiation not found
	ErrCodeConfig        = "E006" // Configuration could not be loaded
	ErrCodeWriteFailed   = "E007" // File write error
)

// LoadError is a problem finding or compiling rule files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line, or zero when unknown.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// FindRuleFiles expands paths into rule files. Directories are walked for
// .cue files, which are returned sorted; files are kept in argument order.
func FindRuleFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules not found: %s", p)}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := FindCUEFiles(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(found) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", p)}
		}
		files = append(files, found...)
	}
	return files, nil
}

// FindCUEFiles walks dir and returns its .cue files sorted by path.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// compileAll compiles every file, collecting errors instead of stopping
// at the first one. The caller releases the returned productions.
func compileAll(syms *symtab.Table, files []string) ([]*ir.Production, []*LoadError) {
	var (
		prods []*ir.Production
		errs  []*LoadError
	)
	for _, f := range files {
		ps, err := compiler.CompileFile(syms, f)
		if err != nil {
			errs = append(errs, convertCompileError(err, f))
			continue
		}
		prods = append(prods, ps...)
	}
	return prods, errs
}

// convertCompileError converts a compiler error to a LoadError with its
// position.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		msg := compileErr.Message
		if compileErr.Production != "" {
			msg = fmt.Sprintf("%s.%s: %s", compileErr.Production, compileErr.Field, msg)
		}
		return &LoadError{Code: ErrCodeCompileFailed, Message: msg, Pos: compileErr.Pos}
	}
	return &LoadError{Code: ErrCodeCompileFailed, Message: fmt.Sprintf("%s: %v", file, err)}
}

// loadConfig reads --config, or returns the defaults.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the command logger from the configuration. --verbose
// forces debug level.
func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) *slog.Logger {
	lc := cfg.Log
	if opts.Verbose {
		lc.Level = "debug"
	}
	return lc.NewLogger(w)
}
