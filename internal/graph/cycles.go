package graph

import (
	"slices"

	"github.com/nao1215/formulagraph/internal/model"
)

// visit states of the cycle search.
const (
	unvisited = iota
	visiting
	done
)

// findCycles enumerates cycles and marks every cyclic node.
//
// The search is a depth-first traversal from every unvisited root in
// ascending order, keeping a "visiting" set (the current path) and a
// "done" set. Reaching a node that is still visiting closes a cycle: the
// path from that node back to itself.
//
// A plain back-edge search can miss cycles that run only through nodes that
// are already done. Strongly connected components are therefore computed
// as well, and every cyclic node not yet named by a reported cycle gets the
// shortest cycle through it added. This keeps the guarantee that every
// offending cell is reported.
func (g *DependencyGraph) findCycles() {
	state := make(map[model.CellReference]int, len(g.nodes))
	seen := make(map[string]struct{})
	var path []model.CellReference

	record := func(cycle model.Cycle) {
		key := cycleKey(cycle)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		g.cycles = append(g.cycles, cycle)
	}

	var visit func(ref model.CellReference)
	visit = func(ref model.CellReference) {
		state[ref] = visiting
		path = append(path, ref)

		for _, dep := range g.sortedNodeDeps(ref) {
			switch state[dep] {
			case visiting:
				start := slices.Index(path, dep)
				record(canonicalCycle(path[start:]))
			case unvisited:
				visit(dep)
			}
		}

		path = path[:len(path)-1]
		state[ref] = done
	}

	for _, ref := range g.nodes {
		if state[ref] == unvisited {
			visit(ref)
		}
	}

	for _, component := range g.stronglyConnected() {
		if len(component) < 2 {
			continue
		}
		for _, ref := range component {
			g.cyclic[ref] = struct{}{}
		}
	}

	covered := make(map[model.CellReference]struct{})
	for _, c := range g.cycles {
		for _, ref := range c {
			covered[ref] = struct{}{}
		}
	}
	for _, ref := range g.CyclicNodes() {
		if _, ok := covered[ref]; ok {
			continue
		}
		cycle := g.shortestCycleThrough(ref)
		if cycle == nil {
			continue
		}
		record(cycle)
		for _, member := range cycle {
			covered[member] = struct{}{}
		}
	}

	slices.SortFunc(g.cycles, func(a, b model.Cycle) int {
		for i := 0; i < len(a) && i < len(b); i++ {
			if c := a[i].Compare(b[i]); c != 0 {
				return c
			}
		}
		return len(a) - len(b)
	})
}

// stronglyConnected returns the strongly connected components of the graph
// using Tarjan's algorithm. Roots and neighbours are visited in ascending
// order so the result is deterministic.
func (g *DependencyGraph) stronglyConnected() [][]model.CellReference {
	var (
		index      = 0
		indices    = make(map[model.CellReference]int, len(g.nodes))
		lowlink    = make(map[model.CellReference]int, len(g.nodes))
		onStack    = make(map[model.CellReference]bool, len(g.nodes))
		stack      []model.CellReference
		components [][]model.CellReference
	)

	var connect func(ref model.CellReference)
	connect = func(ref model.CellReference) {
		indices[ref] = index
		lowlink[ref] = index
		index++
		stack = append(stack, ref)
		onStack[ref] = true

		for _, dep := range g.sortedNodeDeps(ref) {
			if _, visited := indices[dep]; !visited {
				connect(dep)
				lowlink[ref] = min(lowlink[ref], lowlink[dep])
			} else if onStack[dep] {
				lowlink[ref] = min(lowlink[ref], indices[dep])
			}
		}

		if lowlink[ref] != indices[ref] {
			return
		}

		var component []model.CellReference
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == ref {
				break
			}
		}
		model.SortReferences(component)
		components = append(components, component)
	}

	for _, ref := range g.nodes {
		if _, visited := indices[ref]; !visited {
			connect(ref)
		}
	}
	return components
}

// shortestCycleThrough finds the shortest cycle that starts and ends at ref
// by breadth-first search along dependency edges. It returns nil when ref is
// not on a cycle.
func (g *DependencyGraph) shortestCycleThrough(ref model.CellReference) model.Cycle {
	parent := map[model.CellReference]model.CellReference{}
	queue := []model.CellReference{ref}
	reached := map[model.CellReference]bool{ref: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range g.sortedNodeDeps(current) {
			if dep == ref {
				path := []model.CellReference{current}
				for path[len(path)-1] != ref {
					path = append(path, parent[path[len(path)-1]])
				}
				slices.Reverse(path)
				return canonicalCycle(path)
			}
			if reached[dep] {
				continue
			}
			reached[dep] = true
			parent[dep] = current
			queue = append(queue, dep)
		}
	}
	return nil
}
