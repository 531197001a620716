package compiler

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/corleone113/waypoint/internal/route"
)

// CycleWarning reports a set of routes that redirect into each other.
// Matching any of them fails at runtime with a redirect depth error.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["/a", "/b", "/a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeRedirects finds redirect loops in a route table.
//
// Every static redirect (a path or a named location) is an edge from the
// redirecting record to the record it lands on. Function redirects depend
// on the navigation and are not followed. Strongly connected components
// of that graph with more than one node, or with a self-loop, are loops.
//
// A table without loops returns an empty warning list.
func AnalyzeRedirects(configs []route.Config) []CycleWarning {
	m, _ := route.NewMatcher(configs, route.WithLogger(slog.New(slog.DiscardHandler)))
	graph := buildRedirectGraph(m.Registry())
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// dependencyGraph maps a record path to the record paths it redirects to.
type dependencyGraph map[string][]string

// buildRedirectGraph adds one node per redirecting record. Aliases
// redirect through their canonical record and are skipped.
func buildRedirectGraph(reg *route.Registry) dependencyGraph {
	graph := make(dependencyGraph)
	for _, rec := range reg.Records() {
		if rec.Redirect == nil || rec.IsAlias() || rec.Redirect.Func != nil {
			continue
		}
		if graph[rec.Path] == nil {
			graph[rec.Path] = []string{}
		}
		target, ok := redirectTarget(reg, rec)
		if !ok || target == nil {
			continue
		}
		if !slices.Contains(graph[rec.Path], target.Path) {
			graph[rec.Path] = append(graph[rec.Path], target.Path)
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of record paths.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
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
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
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
			sccs = append(sccs, scc)
		}
	}

	// Visit nodes in sorted order so the output is stable
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// The path shows the cycle sequence by reconstructing a path through the SCC.
// For self-loops, the path is [path, path].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		p := scc[0]
		return CycleWarning{
			Path:    []string{p, p},
			Message: fmt.Sprintf("Route redirects to itself: %s → %s", p, p),
			Level:   "warning",
		}
	}

	// Multi-node cycle - reconstruct a cycle path
	path := reconstructCyclePath(scc, graph)

	pathStr := strings.Join(path, " → ")
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Redirect loop detected: %s", pathStr),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at the smallest path in the SCC, follow edges to other
// SCC members, continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	// Build set of SCC members for fast lookup
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	// Follow edges within SCC until we return to start
	for {
		visited[current] = true

		// Find next SCC member reachable from current
		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			// No more unvisited neighbors in SCC
			break
		}

		path = append(path, next)

		if next == start {
			// Completed the cycle
			break
		}

		current = next
	}

	return path
}
