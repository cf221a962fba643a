package graph

import (
	"slices"

	"github.com/zheng/connviz/internal/marker"
)

// PlaceholderPrefix starts the identity of every synthesized external node
const PlaceholderPrefix = "ext:"

// Node is one logical component of the connection graph
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Package of the first member class
	Package string `json:"package,omitempty"`
	// Roles is the union of marker kinds, in marker.Kinds order
	Roles []marker.Kind `json:"roles"`
	// Members are the classes collapsed onto this node
	Members     []string `json:"members,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

// HasRole reports whether the node carries a marker kind
func (n Node) HasRole(k marker.Kind) bool {
	return slices.Contains(n.Roles, k)
}

// External returns the edge kind a placeholder stands in for
func (n Node) External() (EdgeKind, bool) {
	if !n.Placeholder {
		return "", false
	}
	for _, k := range EdgeKinds {
		if sk, ok := supplyKind[k]; ok && n.HasRole(sk) {
			return k, true
		}
	}
	return "", false
}

func (n Node) clone() Node {
	n.Roles = slices.Clone(n.Roles)
	n.Members = slices.Clone(n.Members)
	return n
}

// PlaceholderID builds the identity of the external node standing for name
func PlaceholderID(kind EdgeKind, name string) string {
	return PlaceholderPrefix + string(kind) + ":" + name
}

// unionRoles merges role sets keeping marker.Kinds order
func unionRoles(a, b []marker.Kind) []marker.Kind {
	seen := make(map[marker.Kind]bool, len(a)+len(b))
	for _, k := range a {
		seen[k] = true
	}
	for _, k := range b {
		seen[k] = true
	}
	out := make([]marker.Kind, 0, len(seen))
	for _, k := range marker.Kinds {
		if seen[k] {
			out = append(out, k)
		}
	}
	return out
}
