package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// RuleFileNotFoundError is returned when a scenario names a rule file that
// does not exist.
type RuleFileNotFoundError struct {
	Scenario string
	Path     string
}

// Error implements the error interface.
func (e *RuleFileNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q references rule file %q which does not exist", e.Scenario, e.Path)
}

// Discover returns the scenario files in dir, sorted by name. A path to a
// single file is returned as is.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("discover scenarios: %w", err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("discover scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadAll loads every scenario file in dir.
func LoadAll(dir string) ([]*Scenario, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
