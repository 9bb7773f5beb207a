// Package graph builds the dependency graph of a template's formula cells,
// detects cycles and computes a deterministic execution order.
//
// A DependencyGraph is derived once from the formula table and is read-only
// afterwards; every accessor returns a copy. A graph with cycles is still a
// valid graph: cycle members are reported and excluded from the execution
// order, while the rest of the template stays usable.
package graph

import (
	"slices"
	"strings"

	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/reference"
)

// Edge is a dependency edge: From's formula reads To's value.
type Edge struct {
	From model.CellReference `json:"from"`
	To   model.CellReference `json:"to"`
}

// Option configures Build.
type Option func(*builder)

type builder struct {
	extractor *reference.Extractor
}

// WithExtractor sets the reference extractor used to read formula text.
// The default extractor has no named ranges and no sheet resolver.
func WithExtractor(e *reference.Extractor) Option {
	return func(b *builder) {
		b.extractor = e
	}
}

// DependencyGraph is a directed graph over formula-bearing cells.
//
// Design decision: cycles and the execution order are computed eagerly in
// Build. The graph is therefore immutable after construction and can be
// shared between goroutines without locking.
type DependencyGraph struct {
	nodes      []model.CellReference
	formulas   map[model.CellReference]string
	deps       map[model.CellReference][]model.CellReference
	dependents map[model.CellReference][]model.CellReference
	cycles     []model.Cycle
	cyclic     map[model.CellReference]struct{}
	order      []model.CellReference
}

// Build constructs the graph for formulas, a map from formula cell to its
// formula text. Build never fails: malformed formulas simply contribute
// fewer edges.
func Build(formulas map[model.CellReference]string, opts ...Option) *DependencyGraph {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.extractor == nil {
		b.extractor = reference.NewExtractor()
	}

	g := &DependencyGraph{
		nodes:      make([]model.CellReference, 0, len(formulas)),
		formulas:   make(map[model.CellReference]string, len(formulas)),
		deps:       make(map[model.CellReference][]model.CellReference, len(formulas)),
		dependents: make(map[model.CellReference][]model.CellReference),
		cyclic:     make(map[model.CellReference]struct{}),
	}

	for ref, formula := range formulas {
		g.nodes = append(g.nodes, ref)
		g.formulas[ref] = formula
	}
	model.SortReferences(g.nodes)

	for _, ref := range g.nodes {
		deps := b.extractor.Extract(g.formulas[ref], ref)
		g.deps[ref] = deps
		for _, dep := range deps {
			g.dependents[dep] = append(g.dependents[dep], ref)
		}
	}

	g.findCycles()
	g.computeOrder()
	return g
}

// Nodes returns the formula cells in ascending order.
func (g *DependencyGraph) Nodes() []model.CellReference {
	return slices.Clone(g.nodes)
}

// Len returns the number of nodes.
func (g *DependencyGraph) Len() int {
	return len(g.nodes)
}

// Has reports whether ref is a node of the graph.
func (g *DependencyGraph) Has(ref model.CellReference) bool {
	_, ok := g.formulas[ref]
	return ok
}

// Formula returns the formula text of a node.
func (g *DependencyGraph) Formula(ref model.CellReference) (string, bool) {
	f, ok := g.formulas[ref]
	return f, ok
}

// Dependencies returns every cell ref's formula reads, in order of first
// appearance. Targets need not be formula cells.
func (g *DependencyGraph) Dependencies(ref model.CellReference) []model.CellReference {
	return slices.Clone(g.deps[ref])
}

// Dependents returns the formula cells that read ref, in ascending order.
// ref itself need not be a formula cell.
func (g *DependencyGraph) Dependents(ref model.CellReference) []model.CellReference {
	return slices.Clone(g.dependents[ref])
}

// Edges returns every dependency edge, ordered by source then target
// as they appear in the formula.
func (g *DependencyGraph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.nodes {
		for _, to := range g.deps[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// EdgeCount returns the number of dependency edges.
func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range g.deps {
		n += len(deps)
	}
	return n
}

// Cycles returns every detected cycle. Each cell that lies on any cycle is
// a member of at least one returned cycle.
func (g *DependencyGraph) Cycles() []model.Cycle {
	cycles := make([]model.Cycle, len(g.cycles))
	for i, c := range g.cycles {
		cycles[i] = slices.Clone(c)
	}
	return cycles
}

// HasCycles reports whether the graph contains a cycle.
func (g *DependencyGraph) HasCycles() bool {
	return len(g.cycles) > 0
}

// IsCyclic reports whether ref lies on a cycle.
func (g *DependencyGraph) IsCyclic(ref model.CellReference) bool {
	_, ok := g.cyclic[ref]
	return ok
}

// CyclicNodes returns the cells that lie on a cycle, in ascending order.
func (g *DependencyGraph) CyclicNodes() []model.CellReference {
	refs := make([]model.CellReference, 0, len(g.cyclic))
	for ref := range g.cyclic {
		refs = append(refs, ref)
	}
	model.SortReferences(refs)
	return refs
}

// Order returns the execution order: every acyclic formula cell appears
// after all formula cells it depends on. Cycle members are excluded.
// Ties are broken by ascending reference string, so the order is
// deterministic for a given formula table.
func (g *DependencyGraph) Order() []model.CellReference {
	return slices.Clone(g.order)
}

// DependencyMap returns the dependencies of every node.
func (g *DependencyGraph) DependencyMap() map[model.CellReference][]model.CellReference {
	m := make(map[model.CellReference][]model.CellReference, len(g.deps))
	for ref, deps := range g.deps {
		m[ref] = slices.Clone(deps)
	}
	return m
}

// sortedNodeDeps returns the dependencies of ref that are graph nodes,
// in ascending order. Traversals use it so that results do not depend on
// the textual order of references in a formula.
func (g *DependencyGraph) sortedNodeDeps(ref model.CellReference) []model.CellReference {
	var out []model.CellReference
	for _, dep := range g.deps[ref] {
		if _, ok := g.formulas[dep]; ok {
			out = append(out, dep)
		}
	}
	model.SortReferences(out)
	return out
}

// computeOrder records acyclic nodes on exit from a depth-first traversal,
// visiting roots and neighbours in ascending order.
func (g *DependencyGraph) computeOrder() {
	visited := make(map[model.CellReference]bool, len(g.nodes))
	g.order = make([]model.CellReference, 0, len(g.nodes)-len(g.cyclic))

	var visit func(ref model.CellReference)
	visit = func(ref model.CellReference) {
		visited[ref] = true
		for _, dep := range g.sortedNodeDeps(ref) {
			if visited[dep] || g.IsCyclic(dep) {
				continue
			}
			visit(dep)
		}
		g.order = append(g.order, ref)
	}

	for _, ref := range g.nodes {
		if visited[ref] || g.IsCyclic(ref) {
			continue
		}
		visit(ref)
	}
}

// cycleKey identifies a cycle independently of its starting point.
func cycleKey(c model.Cycle) string {
	parts := make([]string, len(c))
	for i, ref := range c {
		parts[i] = ref.String()
	}
	return strings.Join(parts, "\x00")
}

// canonicalCycle rotates a cycle so that it starts at its smallest member.
func canonicalCycle(path []model.CellReference) model.Cycle {
	minIdx := 0
	for i := range path {
		if path[i].Compare(path[minIdx]) < 0 {
			minIdx = i
		}
	}
	c := make(model.Cycle, 0, len(path))
	c = append(c, path[minIdx:]...)
	c = append(c, path[:minIdx]...)
	return c
}
