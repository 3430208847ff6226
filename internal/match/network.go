// Package match is a reference match network. It recomputes every
// production's matches against working memory and reports the difference
// from the previous pass as token deltas.
//
// INVARIANTS:
//   - A token has one entry per top-level condition; negative conditions
//     and conjunctive negations leave nil entries
//   - Deltas are ordered: retractions in assertion order, assertions by
//     production declaration order then element timetags
package match

import (
	"log/slog"
	"slices"

	"github.com/roach88/prodsys/internal/ir"
)

// Source supplies the current working-memory elements in timetag order.
type Source interface {
	WMEs() []*ir.WME
}

// Match is one (production, token) pair.
type Match struct {
	Prod  *ir.Production
	Token ir.Token
	Key   string
}

// Delta is the change in the match set since the previous Update.
type Delta struct {
	Retracted []Match
	Asserted  []Match
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.Retracted) == 0 && len(d.Asserted) == 0
}

// Network tracks the matches of a set of productions. It is not safe for
// concurrent use.
type Network struct {
	src    Source
	logger *slog.Logger

	prods   []*ir.Production
	current map[string]Match
	order   []string
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		n.logger = logger
	}
}

// New creates a network reading elements from src.
func New(src Source, opts ...Option) *Network {
	n := &Network{
		src:     src,
		logger:  slog.Default(),
		current: make(map[string]Match),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Add starts matching p. Its matches appear in the next Update.
func (n *Network) Add(p *ir.Production) {
	if slices.Contains(n.prods, p) {
		return
	}
	n.prods = append(n.prods, p)
}

// Remove stops matching p and forgets its matches without reporting them.
func (n *Network) Remove(p *ir.Production) {
	n.prods = slices.DeleteFunc(n.prods, func(q *ir.Production) bool { return q == p })
	n.order = slices.DeleteFunc(n.order, func(key string) bool {
		if n.current[key].Prod == p {
			delete(n.current, key)
			return true
		}
		return false
	})
}

// Drop forgets one match without reporting it. The next Update asserts it
// again if it still matches.
func (n *Network) Drop(key string) {
	if _, ok := n.current[key]; !ok {
		return
	}
	delete(n.current, key)
	n.order = slices.DeleteFunc(n.order, func(k string) bool { return k == key })
}

// Productions returns the productions being matched in declaration order.
func (n *Network) Productions() []*ir.Production {
	return slices.Clone(n.prods)
}

// Matches returns the current match set in assertion order.
func (n *Network) Matches() []Match {
	out := make([]Match, 0, len(n.order))
	for _, key := range n.order {
		out = append(out, n.current[key])
	}
	return out
}

// Update recomputes the match set and returns what changed.
func (n *Network) Update() Delta {
	wmes := n.src.WMEs()
	found := make(map[string]Match)
	var foundOrder []string
	for _, p := range n.prods {
		for _, tok := range Tokens(p.Conds, wmes) {
			key := ir.TokenKey(p, tok)
			if _, dup := found[key]; dup {
				continue
			}
			found[key] = Match{Prod: p, Token: tok, Key: key}
			foundOrder = append(foundOrder, key)
		}
	}

	var d Delta
	kept := n.order[:0]
	for _, key := range n.order {
		if _, ok := found[key]; ok {
			kept = append(kept, key)
			continue
		}
		d.Retracted = append(d.Retracted, n.current[key])
		delete(n.current, key)
	}
	n.order = kept
	for _, key := range foundOrder {
		if _, ok := n.current[key]; ok {
			continue
		}
		m := found[key]
		n.current[key] = m
		n.order = append(n.order, key)
		d.Asserted = append(d.Asserted, m)
	}

	if !d.Empty() {
		n.logger.Debug("match set changed",
			"retracted", len(d.Retracted),
			"asserted", len(d.Asserted),
			"matches", len(n.order))
	}
	return d
}
