package agent

// LoopDetector tracks which matches were asserted within one decision.
//
// A token asserted, retracted and asserted again before the decision ends
// means some productions are undoing each other's results. The elaboration
// quota eventually stops a run that never settles; the detector lets the
// agent name the productions involved long before that.
//
// Not safe for concurrent use.
type LoopDetector struct {
	history map[string]map[string]bool // scope -> token key
}

// NewLoopDetector creates an empty detector.
func NewLoopDetector() *LoopDetector {
	return &LoopDetector{history: make(map[string]map[string]bool)}
}

// Seen reports whether key was already asserted in scope.
func (d *LoopDetector) Seen(scope, key string) bool {
	return d.history[scope][key]
}

// Record marks key as asserted in scope.
func (d *LoopDetector) Record(scope, key string) {
	h := d.history[scope]
	if h == nil {
		h = make(map[string]bool)
		d.history[scope] = h
	}
	h[key] = true
}

// Clear forgets scope.
func (d *LoopDetector) Clear(scope string) {
	delete(d.history, scope)
}

// Scopes returns the number of scopes with history.
func (d *LoopDetector) Scopes() int {
	return len(d.history)
}

// Size returns the number of keys recorded in scope.
func (d *LoopDetector) Size(scope string) int {
	return len(d.history[scope])
}
