package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance scenario: rule files, the inputs of each run
// and the checks made afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules lists CUE rule files, loaded in order.
	Rules []string `yaml:"rules"`

	// Config holds configuration overrides in configuration file syntax.
	Config yaml.Node `yaml:"config,omitempty"`

	// Steps run the agent once each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`

	// RunToken prefixes the run ids. If empty, "test-run-default" is used so
	// golden files stay stable.
	RunToken string `yaml:"run_token,omitempty"`
}

// Fact is an input element. An empty ID means the top goal.
type Fact struct {
	ID    string `yaml:"id,omitempty"`
	Attr  string `yaml:"attr"`
	Value string `yaml:"value"`
}

// Step is one run of the agent.
type Step struct {
	Add    []Fact   `yaml:"add,omitempty"`
	Remove []Fact   `yaml:"remove,omitempty"`
	Excise []string `yaml:"excise,omitempty"`

	// PopGoal removes the bottom subgoal before the run, PushGoal then
	// creates a new one.
	PopGoal  bool `yaml:"pop_goal,omitempty"`
	PushGoal bool `yaml:"push_goal,omitempty"`

	// Expect checks the run. If nil, the run only has to succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect describes the expected outcome of a step. Unset fields are
// not checked.
type StepExpect struct {
	Halted    *bool    `yaml:"halted,omitempty"`
	Quiescent *bool    `yaml:"quiescent,omitempty"`
	Fired     *int     `yaml:"fired,omitempty"`
	Decisions *int     `yaml:"decisions,omitempty"`
	Selected  []string `yaml:"selected,omitempty"`

	// Error is a substring of the error the run must end with.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Production is used by fired and fired_count.
	Production string `yaml:"production,omitempty"`

	// Preference optionally narrows fired to firings that generated it,
	// written as "(S1 ^saw red +)".
	Preference string `yaml:"preference,omitempty"`

	// Productions is the expected order for fired_order.
	Productions []string `yaml:"productions,omitempty"`

	// Count is the exact number of firings for fired_count.
	Count int `yaml:"count,omitempty"`

	// Element is used by wm_contains and wm_absent, written as
	// "(S1 ^count 3)".
	Element string `yaml:"element,omitempty"`

	// Text is the expected output.
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertFired      = "fired"
	AssertFiredOrder = "fired_order"
	AssertFiredCount = "fired_count"
	AssertWMContains = "wm_contains"
	AssertWMAbsent   = "wm_absent"
	AssertOutput     = "output"
	AssertHalted     = "halted"
)

// LoadScenario reads a scenario YAML file. Rule paths are resolved against
// the scenario's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario YAML file, resolving relative
// rule paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, rulePath := range s.Rules {
		if !filepath.IsAbs(rulePath) && basePath != "" {
			s.Rules[i] = filepath.Join(basePath, rulePath)
		}
	}
	for _, rulePath := range s.Rules {
		if _, err := os.Stat(rulePath); os.IsNotExist(err) {
			return nil, &RuleFileNotFoundError{Scenario: s.Name, Path: rulePath}
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("rules list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Config.Kind != 0 && s.Config.Kind != yaml.MappingNode {
		return fmt.Errorf("config must be a mapping")
	}

	for i, step := range s.Steps {
		for j, f := range slices.Concat(step.Add, step.Remove) {
			if f.Attr == "" || f.Value == "" {
				return fmt.Errorf("steps[%d]: input %d needs attr and value", i, j)
			}
		}
		if e := step.Expect; e != nil && e.Fired != nil && *e.Fired < 0 {
			return fmt.Errorf("steps[%d].expect: fired must be non-negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFired:
		if a.Production == "" {
			return fmt.Errorf("assertions[%d]: production is required for fired", index)
		}
	case AssertFiredOrder:
		if len(a.Productions) == 0 {
			return fmt.Errorf("assertions[%d]: productions list is required for fired_order", index)
		}
	case AssertFiredCount:
		if a.Production == "" {
			return fmt.Errorf("assertions[%d]: production is required for fired_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fired_count", index)
		}
	case AssertWMContains, AssertWMAbsent:
		if a.Element == "" {
			return fmt.Errorf("assertions[%d]: element is required for %s", index, a.Type)
		}
	case AssertOutput, AssertHalted:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
