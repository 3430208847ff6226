package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/prodsys/internal/ir"
)

// TraceSnapshot is the golden-file form of a scenario result.
type TraceSnapshot struct {
	ScenarioName string
	RunToken     string
	Trace        []TraceEvent
	Memory       []string
	Output       string
}

// NewSnapshot captures result under the scenario's name and run token.
func NewSnapshot(s *Scenario, result *Result) TraceSnapshot {
	token := s.RunToken
	if token == "" {
		token = DefaultRunToken
	}
	return TraceSnapshot{
		ScenarioName: s.Name,
		RunToken:     token,
		Trace:        result.Trace,
		Memory:       result.Memory,
		Output:       result.Output,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON. Empty output
// and empty preference lists are left out.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":        ev.Seq,
			"type":       ev.Type,
			"production": ev.Production,
			"instance":   ev.Instance,
		}
		if len(ev.Prefs) > 0 {
			m["prefs"] = ev.Prefs
		}
		trace[i] = m
	}

	memory := s.Memory
	if memory == nil {
		memory = []string{}
	}
	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"run_token":     s.RunToken,
		"trace":         trace,
		"memory":        memory,
	}
	if s.Output != "" {
		out["output"] = s.Output
	}
	return ir.MarshalCanonical(out)
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, s, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, s *Scenario, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(s, result).MarshalCanonical()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)
	return nil
}
