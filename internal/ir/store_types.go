package ir

// NOTE: These are trace-store records, not part of the rule structures.
// Instantiation IDs come from the engine clock and are unique per run.

// TraceEventKind names a lifecycle transition recorded in a trace.
type TraceEventKind string

const (
	EventFired       TraceEventKind = "fired"
	EventRetracted   TraceEventKind = "retracted"
	EventDeallocated TraceEventKind = "deallocated"
)

// TraceRun is one recorded agent run.
type TraceRun struct {
	ID            string `json:"id"` // UUIDv7 run token
	Source        string `json:"source"`
	RulesHash     string `json:"rules_hash"`
	EngineVersion string `json:"engine_version"`
	FormatVersion string `json:"format_version"`
}

// TraceInstantiation is the static part of a recorded instantiation.
type TraceInstantiation struct {
	RunID          string `json:"run_id"`
	InstID         uint64 `json:"inst_id"`
	Production     string `json:"production"`
	TokenKey       string `json:"token_key"`
	MatchGoalLevel int    `json:"match_goal_level"`
}

// TraceEvent is one lifecycle transition, ordered by Seq within its run.
type TraceEvent struct {
	Seq        int64          `json:"seq"`
	Kind       TraceEventKind `json:"kind"`
	InstID     uint64         `json:"inst_id"`
	Production string         `json:"production"`
}

// TracePreference is a preference generated by a recorded instantiation.
type TracePreference struct {
	InstID     uint64 `json:"inst_id"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	OSupported bool   `json:"o_supported"`
}

// BacktraceEdge links a condition of an instantiation to the instantiation
// whose preference put the matched element in memory. SourceInstID is zero
// for input facts.
type BacktraceEdge struct {
	InstID       uint64 `json:"inst_id"`
	CondIndex    int    `json:"cond_index"`
	WME          string `json:"wme"`
	SourceInstID uint64 `json:"source_inst_id,omitempty"`
}

// TraceFailure is a failed action recorded during a run.
type TraceFailure struct {
	Seq        int64  `json:"seq"`
	InstID     uint64 `json:"inst_id"`
	Production string `json:"production"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// ExplainStep is one instantiation in the justification of another. Depth
// zero is the instantiation being explained.
type ExplainStep struct {
	InstID     uint64 `json:"inst_id"`
	Production string `json:"production"`
	Depth      int    `json:"depth"`
}
