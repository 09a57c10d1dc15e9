// Package graph is the constraint graph the work-list builder populates:
// one PackageNode per distinct package name, each accumulating the
// intersection of every declared requirement that reaches it from the
// project root.
package graph

import (
	"sync"

	"github.com/depscan/rangeaudit/specifier"
)

// PackageNode accumulates the allowed-version envelope for one package as
// the constraint builder discovers requirements on it from different
// places in the dependency tree.
type PackageNode struct {
	Name string

	mu       sync.Mutex
	envelope specifier.AllowedEnvelope
	visited  bool
	minDepth int
	via      [][]string
}

// NewPackageNode returns an empty node for name. Its envelope starts
// unconstrained (matches every version) until the first AddConstraint call.
func NewPackageNode(name string) *PackageNode {
	return &PackageNode{Name: name}
}

// Envelope returns the node's current intersected envelope.
func (n *PackageNode) Envelope() specifier.AllowedEnvelope {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.envelope
}

// Via returns the requirement path recorded by each AddConstraint call on
// this node, in call order (a path repeats if it contributed more than one
// constraint), for provenance reporting on unsatisfiable envelopes.
func (n *PackageNode) Via() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([][]string, len(n.via))
	copy(out, n.via)
	return out
}

// MinDepth returns the shallowest traversal depth at which this package
// was reached.
func (n *PackageNode) MinDepth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.minDepth
}

// AddConstraint intersects c into the node's envelope, recording via as
// the requirement path that contributed it and depth as the traversal
// depth it was discovered at.
//
// It reports whether the node's envelope changed as a result: true on the
// very first constraint seen (the node had no envelope to compare
// against), or whenever intersection changed the envelope's clause list.
// Change is judged on the clause text, not on the set of matching
// versions: a non-empty constraint the envelope already implies (">=0.5"
// added to ">=1.0") still reports true, and only an empty constraint
// reports false. The builder's work-list uses this to decide whether a
// package's dependents need to be re-examined; intersection only ever
// narrows (never widens) the envelope.
func (n *PackageNode) AddConstraint(c specifier.AllowedEnvelope, via []string, depth int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	before := n.envelope.String()
	first := !n.visited
	n.visited = true
	n.envelope = n.envelope.Intersect(c)
	n.via = append(n.via, via)
	if first || depth < n.minDepth {
		n.minDepth = depth
	}
	return first || n.envelope.String() != before
}

// ConstraintGraph is the set of all PackageNodes discovered so far, keyed
// by package name.
type ConstraintGraph struct {
	mu    sync.Mutex
	nodes map[string]*PackageNode
}

// NewConstraintGraph returns an empty graph.
func NewConstraintGraph() *ConstraintGraph {
	return &ConstraintGraph{nodes: make(map[string]*PackageNode)}
}

// GetOrCreate returns the node for name, creating it if this is the first
// time name has been seen.
func (g *ConstraintGraph) GetOrCreate(name string) *PackageNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[name]
	if !ok {
		n = NewPackageNode(name)
		g.nodes[name] = n
	}
	return n
}

// Nodes returns a snapshot of every node currently in the graph.
func (g *ConstraintGraph) Nodes() map[string]*PackageNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]*PackageNode, len(g.nodes))
	for k, v := range g.nodes {
		out[k] = v
	}
	return out
}
