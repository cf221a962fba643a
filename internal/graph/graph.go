// Package graph builds and holds the connection graph: one node per logical
// component, directed edges for REST, messaging and storage relations.
package graph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/zheng/connviz/internal/marker"
)

// ErrInvariant is wrapped by every InvariantError
var ErrInvariant = errors.New("graph invariant violated")

// InvariantError reports a node or edge set that cannot form a Graph
type InvariantError struct {
	Subject string
	Reason  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("graph invariant violated: %s: %s", e.Subject, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Direction selects which edges of a node a query follows
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Graph is a frozen connection graph. Nodes are sorted by ID and edges by
// (from, to, kind, label). It is safe for concurrent reads.
type Graph struct {
	nodes []Node
	index map[string]int
	edges []Edge
	out   map[string][]int
	in    map[string][]int
}

// New validates and freezes a node and edge set. Node IDs must be unique,
// edge endpoints must exist and self-loops are rejected. Identical edges
// collapse to one.
func New(nodes []Node, edges []Edge) (*Graph, error) {
	ids := make(map[string]bool, len(nodes))
	cloned := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, &InvariantError{Subject: n.Label, Reason: "node without identity"}
		}
		if ids[n.ID] {
			return nil, &InvariantError{Subject: n.ID, Reason: "duplicate node"}
		}
		ids[n.ID] = true
		cloned = append(cloned, n.clone())
	}

	seen := make(map[edgeKey]bool, len(edges))
	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		subject := e.From + " -> " + e.To
		switch {
		case !ids[e.From]:
			return nil, &InvariantError{Subject: subject, Reason: "unknown source node"}
		case !ids[e.To]:
			return nil, &InvariantError{Subject: subject, Reason: "unknown target node"}
		case e.From == e.To:
			return nil, &InvariantError{Subject: subject, Reason: "self-loop"}
		case seen[e.key()]:
			continue
		}
		seen[e.key()] = true
		kept = append(kept, e)
	}
	return freeze(cloned, kept), nil
}

// freeze sorts and indexes nodes and edges that already satisfy the
// invariants. It takes ownership of both slices.
func freeze(nodes []Node, edges []Edge) *Graph {
	slices.SortFunc(nodes, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(edges, compareEdges)
	g := &Graph{
		nodes: nodes,
		index: make(map[string]int, len(nodes)),
		edges: edges,
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}
	for i, n := range nodes {
		g.index[n.ID] = i
	}
	for i, e := range edges {
		g.out[e.From] = append(g.out[e.From], i)
		g.in[e.To] = append(g.in[e.To], i)
	}
	return g
}

// Nodes returns every node
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// Edges returns every edge
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Node looks up a node by identity
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i].clone(), true
}

// EdgesOf returns the edges touching id in the given direction, optionally
// restricted to some kinds
func (g *Graph) EdgesOf(id string, dir Direction, kinds ...EdgeKind) []Edge {
	var idx []int
	if dir == Outgoing || dir == Both {
		idx = append(idx, g.out[id]...)
	}
	if dir == Incoming || dir == Both {
		idx = append(idx, g.in[id]...)
	}
	slices.Sort(idx)
	var out []Edge
	for _, i := range idx {
		e := g.edges[i]
		if len(kinds) > 0 && !slices.Contains(kinds, e.Kind) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Neighbors returns the distinct nodes connected to id, sorted by ID
func (g *Graph) Neighbors(id string, dir Direction, kinds ...EdgeKind) []Node {
	seen := make(map[string]bool)
	for _, e := range g.EdgesOf(id, dir, kinds...) {
		other := e.To
		if other == id {
			other = e.From
		}
		seen[other] = true
	}
	out := make([]Node, 0, len(seen))
	for _, n := range g.nodes {
		if seen[n.ID] {
			out = append(out, n.clone())
		}
	}
	return out
}

// EdgesOfKind returns the edges of one kind
func (g *Graph) EdgesOfKind(kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Layers groups node IDs topologically: layer 0 has no incoming edges, each
// later layer depends only on earlier ones. Nodes on or behind a cycle are
// placed together in one trailing layer.
func (g *Graph) Layers() [][]string {
	indegree := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.To]++
	}
	var current []string
	for _, n := range g.nodes {
		if indegree[n.ID] == 0 {
			current = append(current, n.ID)
		}
	}

	var layers [][]string
	placed := 0
	for len(current) > 0 {
		layers = append(layers, current)
		placed += len(current)
		var next []string
		for _, id := range current {
			for _, i := range g.out[id] {
				to := g.edges[i].To
				indegree[to]--
				if indegree[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if placed < len(g.nodes) {
		var rest []string
		for _, n := range g.nodes {
			if indegree[n.ID] > 0 {
				rest = append(rest, n.ID)
			}
		}
		layers = append(layers, rest)
	}
	return layers
}

// PackageGroup is the set of nodes sharing a Java package. Placeholders
// and nodes without a package share the group with an empty name.
type PackageGroup struct {
	Name  string
	Nodes []Node
}

// Packages groups nodes by package, sorted by package name
func (g *Graph) Packages() []PackageGroup {
	byName := make(map[string]int)
	var groups []PackageGroup
	for _, n := range g.nodes {
		name := n.Package
		if n.Placeholder {
			name = ""
		}
		i, ok := byName[name]
		if !ok {
			i = len(groups)
			byName[name] = i
			groups = append(groups, PackageGroup{Name: name})
		}
		groups[i].Nodes = append(groups[i].Nodes, n.clone())
	}
	slices.SortFunc(groups, func(a, b PackageGroup) int { return cmp.Compare(a.Name, b.Name) })
	return groups
}

// Stats summarizes a graph
type Stats struct {
	Nodes        int                 `json:"nodes"`
	Placeholders int                 `json:"placeholders"`
	Edges        int                 `json:"edges"`
	EdgesByKind  map[EdgeKind]int    `json:"edges_by_kind"`
	Roles        map[marker.Kind]int `json:"roles"`
}

// Stats counts nodes, placeholders, edges per kind and nodes per role
func (g *Graph) Stats() Stats {
	s := Stats{
		Nodes:       len(g.nodes),
		Edges:       len(g.edges),
		EdgesByKind: make(map[EdgeKind]int),
		Roles:       make(map[marker.Kind]int),
	}
	for _, n := range g.nodes {
		if n.Placeholder {
			s.Placeholders++
		}
		for _, r := range n.Roles {
			s.Roles[r]++
		}
	}
	for _, e := range g.edges {
		s.EdgesByKind[e.Kind]++
	}
	return s
}
