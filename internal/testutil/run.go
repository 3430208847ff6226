package testutil

// FixedRunGenerator returns the same run token every time, so traces of
// repeated runs compare byte for byte.
//
// Implements agent.RunTokenGenerator.
type FixedRunGenerator struct {
	token string
}

// NewFixedRunGenerator creates a generator. An empty token becomes
// "test-run-default".
func NewFixedRunGenerator(token string) *FixedRunGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedRunGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedRunGenerator) Generate() string {
	return g.token
}
