package agent

import "github.com/google/uuid"

// RunTokenGenerator names runs. Each Run asks for one token, which keys the
// run's trace records.
type RunTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run tokens, so runs listed
// by token also list in start order.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator hands out predetermined run tokens in order. Tests use
// it to replay multi-run sessions with stable trace keys.
type SequenceGenerator struct {
	tokens []string
	idx    int
}

// NewSequenceGenerator creates a generator returning tokens in order.
func NewSequenceGenerator(tokens ...string) *SequenceGenerator {
	return &SequenceGenerator{tokens: tokens}
}

// Generate returns the next token.
//
// Panics when every token has been used: the caller started more runs
// than it planned for.
func (g *SequenceGenerator) Generate() string {
	if g.idx >= len(g.tokens) {
		panic("agent: all run tokens used")
	}
	t := g.tokens[g.idx]
	g.idx++
	return t
}
