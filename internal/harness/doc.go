// Package harness runs rule-set scenarios against a fresh agent and checks
// what happened.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: count_to_three
//	description: "Counts to three with one operator per decision"
//	rules:
//	  - ../rules/count.cue
//	config:
//	  max_decisions: 20
//	steps:
//	  - add:
//	      - {attr: start, value: "yes"}
//	    expect:
//	      halted: true
//	      selected: [O1, O2, O3]
//	assertions:
//	  - type: fired_count
//	    production: count*apply
//	    count: 3
//	  - type: wm_contains
//	    element: "(S1 ^count 3)"
//
// Rule paths are relative to the scenario file. The config block uses the
// keys of the configuration file. Each step enqueues its inputs, excises
// the named productions and runs the agent once.
//
// # Assertion Types
//
//   - fired: a production fired, optionally generating a given preference
//   - fired_order: productions first fired in the given order
//   - fired_count: a production fired exactly N times
//   - wm_contains / wm_absent: an element is or is not in final memory
//   - output: text written by the rules, compared exactly
//   - halted: the agent halted
//
// # Determinism
//
// Instantiation ids come from a deterministic clock and run tokens are
// derived from the scenario's run_token, so traces compare byte for byte
// against golden files under testdata/golden.
package harness
