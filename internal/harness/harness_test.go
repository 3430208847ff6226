package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/engine"
)

func parse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_ExampleScenariosPass(t *testing.T) {
	scenarios, err := LoadAll("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			res, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
		})
	}
}

func TestRun_CountToThree(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/count_to_three.yaml")
	require.NoError(t, err)

	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)

	step := res.Steps[0]
	assert.Equal(t, "count/1", step.RunID)
	assert.Equal(t, []string{"O1", "O2", "O3"}, step.Selected)
	assert.True(t, res.Halted)
	assert.Equal(t, "done at 3\n", res.Output)
	assert.Contains(t, res.Memory, "(S1 ^start yes)")
	assert.Len(t, res.Fired("count*propose"), 3)
}

func TestRun_OscillationStopsAtQuota(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/oscillation.yaml")
	require.NoError(t, err)

	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.True(t, engine.IsQuotaError(res.Steps[0].Err))
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestRun_FailedExpectationsReported(t *testing.T) {
	s := parse(t, `
name: wrong
description: "Expects too much"
rules: [testdata/rules/seen.cue]
steps:
  - add: [{attr: color, value: red}]
    expect:
      fired: 2
      halted: true
      selected: [O1]
      error: quota
assertions:
  - type: wm_contains
    element: "(S1 ^saw blue)"
`)
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 5)
	assert.Contains(t, res.Errors[0], `expected error containing "quota", run succeeded`)
	assert.Contains(t, res.Errors[1], "halted = false, expected true")
	assert.Contains(t, res.Errors[2], "fired 1, expected 2")
	assert.Contains(t, res.Errors[3], "selected operators (-want +got)")
	assert.Contains(t, res.Errors[4], "assertions[0]")
}

func TestRun_UnexpectedErrorStopsSteps(t *testing.T) {
	s := parse(t, `
name: stops
description: "A failing run skips the remaining steps"
rules: [testdata/rules/flip.cue]
config: {max_elaborations: 3}
steps:
  - add: [{attr: x, value: "1"}]
  - add: [{attr: z, value: "1"}]
assertions:
  - type: fired
    production: flip
`)
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, res.Steps, 1)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "steps[0]: run failed")
}

func TestRun_ExciseStep(t *testing.T) {
	s := parse(t, `
name: excise
description: "An excised production retracts and stops matching"
rules: [testdata/rules/seen.cue]
steps:
  - add: [{attr: color, value: red}]
  - excise: [seen]
  - add: [{attr: color, value: blue}]
    expect: {fired: 0}
assertions:
  - type: fired_count
    production: seen
    count: 1
  - type: wm_absent
    element: "(S1 ^saw red)"
  - type: wm_contains
    element: "(S1 ^color blue)"
`)
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, "test-run-default/3", res.Steps[2].RunID)
}

func TestRun_UnknownExciseFails(t *testing.T) {
	s := parse(t, `
name: excise_missing
description: "Excising an unknown production fails the step"
rules: [testdata/rules/seen.cue]
steps:
  - excise: [nope]
assertions:
  - type: fired_count
    production: seen
    count: 0
`)
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Contains(t, res.Errors[0], "excise")
}

func TestRun_SubgoalSteps(t *testing.T) {
	s := parse(t, `
name: subgoal
description: "Results made for a subgoal leave with it"
rules: [testdata/rules/subgoal.cue]
steps:
  - push_goal: true
    expect: {fired: 1, quiescent: true}
  - pop_goal: true
    expect: {fired: 0, quiescent: true}
assertions:
  - type: fired
    production: sub*mark
    preference: "(S2 ^seen yes +)"
  - type: wm_absent
    element: "(S2 ^seen yes)"
  - type: wm_absent
    element: "(S2 ^superstate S1)"
`)
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	require.Len(t, res.Steps, 2)
}

func TestRun_PopTopGoalFails(t *testing.T) {
	s := parse(t, `
name: pop_top
description: "The top goal cannot be popped"
rules: [testdata/rules/subgoal.cue]
steps:
  - pop_goal: true
assertions:
  - type: fired_count
    production: sub*mark
    count: 0
`)
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Contains(t, res.Errors[0], "pop_goal")
}

func TestRun_SetupErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "bad_config",
			src: `
name: bad_config
description: d
rules: [testdata/rules/seen.cue]
config: {bogus: 1}
steps: [{}]
assertions: [{type: halted}]
`,
			wantErr: "config",
		},
		{
			name: "missing_rules",
			src: `
name: missing_rules
description: d
rules: [testdata/rules/missing.cue]
steps: [{}]
assertions: [{type: halted}]
`,
			wantErr: "missing.cue",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), parse(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/count_to_three.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := NewSnapshot(s, first).MarshalCanonical()
	require.NoError(t, err)
	b, err := NewSnapshot(s, second).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunAll_KeepsInputOrder(t *testing.T) {
	scenarios, err := LoadAll("testdata/scenarios")
	require.NoError(t, err)

	results, err := RunAll(context.Background(), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))
	for i, res := range results {
		assert.Equal(t, scenarios[i].Name, res.Name)
		assert.True(t, res.Pass, "%s: %v", res.Name, res.Errors)
	}
}

func TestRunAll_SetupErrorFailsOneScenario(t *testing.T) {
	good, err := LoadScenario("testdata/scenarios/saw_color.yaml")
	require.NoError(t, err)
	bad := parse(t, `
name: bad
description: d
rules: [testdata/rules/missing.cue]
steps: [{}]
assertions: [{type: halted}]
`)
	results, err := RunAll(context.Background(), []*Scenario{good, bad}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Pass, "errors: %v", results[0].Errors)
	assert.False(t, results[1].Pass)
	assert.Contains(t, results[1].Errors[0], "setup:")
}

func TestRunAll_CancelledContext(t *testing.T) {
	scenarios, err := LoadAll("testdata/scenarios")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RunAll(ctx, scenarios, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
