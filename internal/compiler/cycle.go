package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/prodsys/internal/ir"
)

// CycleWarning represents a potential elaboration loop among productions.
//
// Cycles are warnings, not errors, because most are intentional: a
// production that proposes and applies an operator on the same attribute
// is a cycle that operator selection breaks at run time. The elaboration
// quota catches the ones that never settle.
type CycleWarning struct {
	Path    []string `json:"path"` // ["p1", "p2", "p1"]
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles performs static dependency analysis on productions.
//
// A production depends on another when one of its actions makes an
// attribute the other tests. A variable attribute on either side matches
// every attribute. Strongly connected components of that graph, and
// self-loops, are reported in declaration order.
func AnalyzeCycles(prods []*ir.Production) []CycleWarning {
	if len(prods) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildDependencyGraph(prods)
	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dependencyGraph maps a production name to the productions its actions
// can trigger.
type dependencyGraph map[string][]string

// attrSet is the attributes a production makes or tests; any is set when
// one of them is not a constant.
type attrSet struct {
	names map[string]bool
	any   bool
}

func (s attrSet) overlaps(o attrSet) bool {
	if (s.any && (o.any || len(o.names) > 0)) || (o.any && len(s.names) > 0) {
		return true
	}
	for n := range s.names {
		if o.names[n] {
			return true
		}
	}
	return false
}

func tested(conds []*ir.Condition, into *attrSet) {
	for _, c := range conds {
		if c.Kind == ir.ConjunctiveNegation {
			tested(c.NCC, into)
			continue
		}
		if s := ir.EqualitySymbol(c.Attr); s != nil && s.IsConstant() {
			into.names[s.String()] = true
		} else {
			into.any = true
		}
	}
}

func made(actions []*ir.Action) attrSet {
	out := attrSet{names: make(map[string]bool)}
	for _, a := range actions {
		if a.Kind != ir.MakeAction {
			continue
		}
		if lit, ok := a.Attr.(ir.Literal); ok && lit.Sym.IsConstant() {
			out.names[lit.Sym.String()] = true
		} else {
			out.any = true
		}
	}
	return out
}

func buildDependencyGraph(prods []*ir.Production) (dependencyGraph, []string) {
	graph := make(dependencyGraph, len(prods))
	order := make([]string, 0, len(prods))
	tests := make([]attrSet, len(prods))
	for i, p := range prods {
		tests[i] = attrSet{names: make(map[string]bool)}
		tested(p.Conds, &tests[i])
		order = append(order, p.Name)
	}

	for _, p := range prods {
		makes := made(p.Actions)
		graph[p.Name] = []string{}
		for j, q := range prods {
			if makes.overlaps(tests[j]) {
				graph[p.Name] = append(graph[p.Name], q.Name)
			}
		}
	}
	return graph, order
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm,
// visiting roots in order. Single-node SCCs without self-loops are not
// cycles.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			// Report members in declaration order.
			slices.SortFunc(scc, func(a, b string) int {
				return slices.Index(order, a) - slices.Index(order, b)
			})
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	slices.SortFunc(sccs, func(a, b []string) int {
		return slices.Index(order, a[0]) - slices.Index(order, b[0])
	})
	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("production can re-trigger itself: %s → %s", name, name),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential elaboration cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to it.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) && neighbor != current {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
