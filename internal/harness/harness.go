package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/roach88/prodsys/internal/agent"
	"github.com/roach88/prodsys/internal/config"
	"github.com/roach88/prodsys/internal/engine"
	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/testutil"
)

// DefaultRunToken is used when a scenario sets no run_token.
const DefaultRunToken = "test-run-default"

type options struct {
	logger *slog.Logger
}

// Option configures a scenario run.
type Option func(*options)

// WithLogger sets the agent logger. Scenarios log nowhere by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Run executes a scenario in a fresh agent and evaluates its assertions.
// The error is non-nil only when the scenario could not be set up; failed
// steps and assertions are reported in the result.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := scenarioConfig(s)
	if err != nil {
		return nil, err
	}

	token := s.RunToken
	if token == "" {
		token = DefaultRunToken
	}
	runIDs := make([]string, len(s.Steps))
	for i := range runIDs {
		runIDs[i] = fmt.Sprintf("%s/%d", token, i+1)
	}

	result := NewResult(s.Name)
	tracer := &tracer{result: result}
	var out bytes.Buffer

	a, err := agent.New(cfg,
		agent.WithLogger(o.logger),
		agent.WithOutput(&out),
		agent.WithClock(testutil.NewDeterministicClock()),
		agent.WithRunTokens(agent.NewSequenceGenerator(runIDs...)),
		agent.WithListener(tracer))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	defer a.Close()

	for _, path := range s.Rules {
		if _, err := a.LoadFile(path); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	for i, step := range s.Steps {
		sr, ok := runStep(ctx, a, i, step, result)
		result.Steps = append(result.Steps, sr)
		if !ok {
			break
		}
	}

	for _, w := range a.Memory().WMEs() {
		result.Memory = append(result.Memory, RenderWME(w))
	}
	result.Output = out.String()
	result.Halted = a.Engine().Halted()

	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep applies one step and checks its expectations. It reports false
// when later steps should not run.
func runStep(ctx context.Context, a *agent.Agent, index int, step Step, result *Result) (StepResult, bool) {
	for _, f := range step.Add {
		a.AddFact(f.ID, f.Attr, f.Value)
	}
	for _, f := range step.Remove {
		a.RemoveFact(f.ID, f.Attr, f.Value)
	}
	for _, name := range step.Excise {
		if err := a.Excise(name); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: excise: %v", index, err))
			return StepResult{Err: err}, false
		}
	}
	if step.PopGoal {
		if err := a.PopGoal(); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: pop_goal: %v", index, err))
			return StepResult{Err: err}, false
		}
	}
	if step.PushGoal {
		a.PushGoal()
	}

	res, err := a.Run(ctx)
	sr := StepResult{
		RunID:     res.RunID,
		Decisions: res.Decisions,
		Fired:     res.Fired,
		Retracted: res.Retracted,
		Selected:  res.Selected,
		Halted:    res.Halted,
		Quiescent: res.Quiescent,
		Err:       err,
	}

	e := step.Expect
	if e == nil {
		e = &StepExpect{}
	}
	switch {
	case err != nil && e.Error == "":
		result.AddError(fmt.Sprintf("steps[%d]: run failed: %v", index, err))
		return sr, false
	case err == nil && e.Error != "":
		result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, run succeeded", index, e.Error))
	case err != nil && !strings.Contains(err.Error(), e.Error):
		result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %v", index, e.Error, err))
	}

	if e.Halted != nil && *e.Halted != sr.Halted {
		result.AddError(fmt.Sprintf("steps[%d]: halted = %v, expected %v", index, sr.Halted, *e.Halted))
	}
	if e.Quiescent != nil && *e.Quiescent != sr.Quiescent {
		result.AddError(fmt.Sprintf("steps[%d]: quiescent = %v, expected %v", index, sr.Quiescent, *e.Quiescent))
	}
	if e.Fired != nil && *e.Fired != sr.Fired {
		result.AddError(fmt.Sprintf("steps[%d]: fired %d, expected %d", index, sr.Fired, *e.Fired))
	}
	if e.Decisions != nil && *e.Decisions != sr.Decisions {
		result.AddError(fmt.Sprintf("steps[%d]: %d decisions, expected %d", index, sr.Decisions, *e.Decisions))
	}
	if e.Selected != nil {
		if diff := cmp.Diff(e.Selected, sr.Selected); diff != "" {
			result.AddError(fmt.Sprintf("steps[%d]: selected operators (-want +got):\n%s", index, diff))
		}
	}

	// A failed run leaves the match set half elaborated.
	return sr, err == nil
}

// RunAll executes scenarios concurrently, at most limit at a time, and
// returns their results in input order. A limit below one means no limit.
// A scenario that cannot be set up yields a failed result; only context
// cancellation fails the whole batch.
func RunAll(ctx context.Context, scenarios []*Scenario, limit int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Run(ctx, s, opts...)
			if err != nil {
				res = NewResult(s.Name)
				res.AddError(fmt.Sprintf("setup: %v", err))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// scenarioConfig applies the scenario's overrides to the defaults.
func scenarioConfig(s *Scenario) (*config.Config, error) {
	if s.Config.Kind == 0 {
		return config.Default(), nil
	}
	data, err := yaml.Marshal(&s.Config)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: config: %w", s.Name, err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: config: %w", s.Name, err)
	}
	return cfg, nil
}

// RenderWME prints an element without its timetag, the way assertions
// name elements.
func RenderWME(w *ir.WME) string {
	acc := ""
	if w.Acceptable {
		acc = " +"
	}
	return fmt.Sprintf("(%s ^%s %s%s)", w.ID, w.Attr, w.Value, acc)
}

// tracer appends lifecycle events to a result.
type tracer struct {
	result *Result
}

func (t *tracer) add(typ string, inst *ir.Instantiation, prefs []string) {
	t.result.Trace = append(t.result.Trace, TraceEvent{
		Seq:        len(t.result.Trace) + 1,
		Type:       typ,
		Production: inst.Name(),
		Instance:   inst.ID,
		Prefs:      prefs,
	})
}

func (t *tracer) ProductionFired(inst *ir.Instantiation) {
	prefs := make([]string, len(inst.Prefs))
	for i, p := range inst.Prefs {
		prefs[i] = p.String()
	}
	t.add(EventFired, inst, prefs)
}

func (t *tracer) ProductionRetracted(inst *ir.Instantiation) {
	t.add(EventRetracted, inst, nil)
}

func (t *tracer) InstantiationDeallocated(inst *ir.Instantiation) {
	t.add(EventDeallocated, inst, nil)
}

var (
	_ engine.Listener             = (*tracer)(nil)
	_ engine.DeallocationListener = (*tracer)(nil)
)
