package ir

// Version constants recorded with every trace-store run.
const (
	// FormatVersion is the version of the rendered/fingerprinted rule form.
	FormatVersion = "1"

	// EngineVersion is the rule-engine version.
	EngineVersion = "0.1.0"
)
