package harness

// Trace event types.
const (
	EventFired       = "fired"
	EventRetracted   = "retracted"
	EventDeallocated = "deallocated"
)

// TraceEvent is one instantiation lifecycle transition seen during a
// scenario. Prefs is set for firings only.
type TraceEvent struct {
	Seq        int
	Type       string
	Production string
	Instance   uint64
	Prefs      []string
}

// StepResult is what one step's run did.
type StepResult struct {
	RunID     string
	Decisions int
	Fired     int
	Retracted int
	Selected  []string
	Halted    bool
	Quiescent bool
	Err       error
}

// Result is the outcome of a scenario.
type Result struct {
	Name   string
	Pass   bool
	Trace  []TraceEvent
	Steps  []StepResult
	Errors []string

	// Memory renders the final working memory in timetag order.
	Memory []string
	Output string
	Halted bool
}

// NewResult creates a passing result with an empty trace.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Trace:  []TraceEvent{},
		Memory: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Fired returns the firing events of production.
func (r *Result) Fired(production string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventFired && ev.Production == production {
			out = append(out, ev)
		}
	}
	return out
}
