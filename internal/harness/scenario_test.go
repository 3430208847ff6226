package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// createTestRules writes a one-production rule file under dir/rules.
func createTestRules(t *testing.T, dir, name string) string {
	t.Helper()
	rulesDir := filepath.Join(dir, "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0755))
	path := filepath.Join(rulesDir, name)
	src := `production: seen: {
	lhs: [{id: "<s>", goal: true, attr: "color", value: "<c>"}]
	rhs: [{id: "<s>", attr: "saw", value: "<c>"}]
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
rules:
  - rules/seen.cue
config:
  max_decisions: 7
steps:
  - add:
      - {attr: color, value: red}
    expect:
      fired: 1
assertions:
  - type: fired
    production: seen
`

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	rulesPath := createTestRules(t, dir, "seen.cue")
	path := writeScenario(t, dir, "test.yaml", validScenario)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, []string{rulesPath}, s.Rules)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, []Fact{{Attr: "color", Value: "red"}}, s.Steps[0].Add)
	require.NotNil(t, s.Steps[0].Expect.Fired)
	assert.Equal(t, 1, *s.Steps[0].Expect.Fired)
	assert.Equal(t, yaml.MappingNode, s.Config.Kind)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "test.yaml", validScenario)

	_, err := LoadScenario(path)
	var notFound *RuleFileNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "test_scenario", notFound.Scenario)
	assert.Equal(t, filepath.Join(dir, "rules", "seen.cue"), notFound.Path)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	createTestRules(t, dir, "seen.cue")
	sub := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(sub, 0755))
	path := writeScenario(t, sub, "test.yaml", validScenario)

	_, err := LoadScenario(path)
	require.Error(t, err)

	s, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rules", "seen.cue"), s.Rules[0])
}

func TestParseScenario_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing_name",
			yaml:    "description: d\nrules: [a.cue]\nsteps: [{}]\nassertions: [{type: halted}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing_description",
			yaml:    "name: n\nrules: [a.cue]\nsteps: [{}]\nassertions: [{type: halted}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing_rules",
			yaml:    "name: n\ndescription: d\nsteps: [{}]\nassertions: [{type: halted}]\n",
			wantErr: "rules list is required",
		},
		{
			name:    "missing_steps",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nassertions: [{type: halted}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing_assertions",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nsteps: [{}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "config_not_mapping",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nconfig: [1]\nsteps: [{}]\nassertions: [{type: halted}]\n",
			wantErr: "config must be a mapping",
		},
		{
			name:    "input_without_value",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nsteps: [{add: [{attr: color}]}]\nassertions: [{type: halted}]\n",
			wantErr: "steps[0]: input 0 needs attr and value",
		},
		{
			name:    "negative_fired",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nsteps: [{expect: {fired: -1}}]\nassertions: [{type: halted}]\n",
			wantErr: "fired must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_UnknownFieldsRejected(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "typo_assertion_singular",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nsteps: [{}]\nassertion: [{type: halted}]\n",
			wantErr: "field assertion not found",
		},
		{
			name:    "typo_in_step",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nsteps: [{ad: []}]\nassertions: [{type: halted}]\n",
			wantErr: "field ad not found",
		},
		{
			name:    "typo_in_expect",
			yaml:    "name: n\ndescription: d\nrules: [a.cue]\nsteps: [{expect: {halt: true}}]\nassertions: [{type: halted}]\n",
			wantErr: "field halt not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_AssertionTypes(t *testing.T) {
	tests := []struct {
		assertion string
		wantErr   string
	}{
		{"{type: fired, production: p}", ""},
		{"{type: fired}", "production is required for fired"},
		{"{type: fired_order, productions: [a, b]}", ""},
		{"{type: fired_order}", "productions list is required"},
		{"{type: fired_count, production: p, count: 0}", ""},
		{"{type: fired_count, production: p, count: -1}", "count must be non-negative"},
		{"{type: wm_contains, element: '(S1 ^a b)'}", ""},
		{"{type: wm_absent}", "element is required for wm_absent"},
		{"{type: output, text: ''}", ""},
		{"{type: halted}", ""},
		{"{production: p}", "type is required"},
		{"{type: final_state}", `unknown assertion type "final_state"`},
	}

	for _, tt := range tests {
		t.Run(tt.assertion, func(t *testing.T) {
			src := "name: n\ndescription: d\nrules: [a.cue]\nsteps: [{}]\nassertions: [" + tt.assertion + "]\n"
			_, err := ParseScenario([]byte(src))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDiscover_SortsScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "c.yaml"} {
		writeScenario(t, dir, name, "")
	}

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "c.yaml"),
	}, paths)

	single, err := Discover(paths[0])
	require.NoError(t, err)
	assert.Equal(t, paths[:1], single)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadExampleScenarios(t *testing.T) {
	scenarios, err := LoadAll("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"count_to_three", "oscillation", "saw_color"}, names)
}
