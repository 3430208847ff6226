package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// AssertionError is returned when an assertion fails. It carries the trace
// so the failure can be read without rerunning the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFirings:\n")
	for _, ev := range e.Trace {
		if ev.Type == EventFired {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", ev.Instance, ev.Production, ev.Prefs)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFired:
		return assertFired(result, a)
	case AssertFiredOrder:
		return assertFiredOrder(result, a)
	case AssertFiredCount:
		return assertFiredCount(result, a)
	case AssertWMContains:
		return assertMemory(result, a, true)
	case AssertWMAbsent:
		return assertMemory(result, a, false)
	case AssertOutput:
		return assertOutput(result, a)
	case AssertHalted:
		if !result.Halted {
			return &AssertionError{Type: a.Type, Expected: "agent halted", Actual: "agent did not halt", Trace: result.Trace}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertFired(result *Result, a Assertion) error {
	for _, ev := range result.Fired(a.Production) {
		if a.Preference == "" || slices.Contains(ev.Prefs, a.Preference) {
			return nil
		}
	}
	expected := a.Production + " fired"
	if a.Preference != "" {
		expected += " generating " + a.Preference
	}
	return &AssertionError{Type: a.Type, Expected: expected, Actual: "not found in trace", Trace: result.Trace}
}

// assertFiredOrder compares first firings. Other productions may fire in
// between.
func assertFiredOrder(result *Result, a Assertion) error {
	first := make(map[string]int)
	for _, ev := range result.Trace {
		if ev.Type != EventFired {
			continue
		}
		if _, seen := first[ev.Production]; !seen {
			first[ev.Production] = ev.Seq
		}
	}

	var got []string
	for _, name := range a.Productions {
		if _, ok := first[name]; ok {
			got = append(got, name)
		}
	}
	slices.SortStableFunc(got, func(x, y string) int { return first[x] - first[y] })

	if diff := cmp.Diff(a.Productions, got); diff != "" {
		return &AssertionError{
			Type:     a.Type,
			Expected: strings.Join(a.Productions, " -> "),
			Actual:   fmt.Sprintf("first firings differ (-want +got):\n%s", diff),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertFiredCount(result *Result, a Assertion) error {
	if n := len(result.Fired(a.Production)); n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s fired %d times", a.Production, a.Count),
			Actual:   fmt.Sprintf("fired %d times", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertMemory(result *Result, a Assertion, want bool) error {
	if slices.Contains(result.Memory, a.Element) == want {
		return nil
	}
	expected, actual := a.Element+" in memory", "absent"
	if !want {
		expected, actual = a.Element+" absent", "in memory"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("%s; memory is %v", actual, result.Memory),
		Trace:    result.Trace,
	}
}

func assertOutput(result *Result, a Assertion) error {
	if result.Output == a.Text {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%q", a.Text),
		Actual:   fmt.Sprintf("%q", result.Output),
		Trace:    result.Trace,
	}
}
