package store

import (
	"fmt"

	"github.com/roach88/prodsys/internal/ir"
)

// RulesHash computes the content address of a rule set: the names and
// fingerprints of prods in declaration order.
func RulesHash(prods []*ir.Production) (string, error) {
	entries := make([]any, 0, len(prods))
	for _, p := range prods {
		entries = append(entries, map[string]any{
			"name":        p.Name,
			"fingerprint": p.Fingerprint,
		})
	}
	h, err := ir.TraceHash(map[string]any{
		"format":      ir.FormatVersion,
		"productions": entries,
	})
	if err != nil {
		return "", fmt.Errorf("rules hash: %w", err)
	}
	return h, nil
}

func traceInstantiation(run string, inst *ir.Instantiation) ir.TraceInstantiation {
	return ir.TraceInstantiation{
		RunID:          run,
		InstID:         inst.ID,
		Production:     inst.Name(),
		TokenKey:       inst.Key,
		MatchGoalLevel: inst.MatchGoalLevel,
	}
}

func tracePreferences(inst *ir.Instantiation) []ir.TracePreference {
	out := make([]ir.TracePreference, 0, len(inst.Prefs))
	for i, p := range inst.Prefs {
		out = append(out, ir.TracePreference{
			InstID:     inst.ID,
			Ordinal:    i,
			Text:       p.String(),
			OSupported: p.OSupported,
		})
	}
	return out
}

// backtraceEdges lists the positive conditions of inst. Negated conditions
// match no element and have no edge.
func backtraceEdges(inst *ir.Instantiation) []ir.BacktraceEdge {
	var out []ir.BacktraceEdge
	for i, c := range inst.Conds {
		if c.WME == nil {
			continue
		}
		e := ir.BacktraceEdge{InstID: inst.ID, CondIndex: i, WME: c.WME.String()}
		if c.Trace != nil && c.Trace.Inst != nil {
			e.SourceInstID = c.Trace.Inst.ID
		}
		out = append(out, e)
	}
	return out
}

func nullableInstID(id uint64) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
