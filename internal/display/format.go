package display

import (
	"fmt"
	"strings"

	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
	"github.com/zheng/connviz/internal/storage"
)

// ShortName abbreviates the package of a qualified class name.
// e.g., "com.acme.shop.OrderController" -> "c.a.shop.OrderController"
// Placeholder and unqualified identities are returned unchanged.
func ShortName(id string) string {
	if strings.HasPrefix(id, graph.PlaceholderPrefix) {
		return id
	}
	parts := strings.Split(id, ".")
	if len(parts) <= 2 {
		return id
	}
	for i := 0; i < len(parts)-2; i++ {
		if parts[i] != "" {
			parts[i] = parts[i][:1]
		}
	}
	return strings.Join(parts, ".")
}

// Roles renders node roles as "a,b", or "-" when there are none
func Roles(roles []marker.Kind) string {
	if len(roles) == 0 {
		return "-"
	}
	s := make([]string, len(roles))
	for i, r := range roles {
		s[i] = string(r)
	}
	return strings.Join(s, ",")
}

// EdgeLabel renders an edge as "[kind] label"
func EdgeLabel(e *graph.Edge) string {
	if e == nil {
		return ""
	}
	if e.Label == "" {
		return "[" + string(e.Kind) + "]"
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Label)
}

// CalcTreeMaxWidth calculates the maximum name width and depth for alignment in the tree.
func CalcTreeMaxWidth(tree []*storage.TreeNode, maxWidth *int, currentDepth int, maxDepth *int) {
	if currentDepth > *maxDepth {
		*maxDepth = currentDepth
	}
	for _, node := range tree {
		w := len(ShortName(node.Node.ID))
		if w > *maxWidth {
			*maxWidth = w
		}
		if len(node.Children) > 0 {
			CalcTreeMaxWidth(node.Children, maxWidth, currentDepth+1, maxDepth)
		}
	}
}

// FormatTree renders a connection tree with box-drawing characters, one
// node per line followed by the edge that reached it.
func FormatTree(tree []*storage.TreeNode, indent string, maxWidth int, maxDepth int, currentDepth int) string {
	var sb strings.Builder
	for i, node := range tree {
		isLast := i == len(tree)-1
		prefix := "├──"
		if isLast {
			prefix = "└──"
		}

		name := ShortName(node.Node.ID)
		padding := maxWidth + (maxDepth-currentDepth)*4
		sb.WriteString(fmt.Sprintf("%s%s %-*s  %s\n", indent, prefix, padding, name, EdgeLabel(node.Edge)))

		if len(node.Children) > 0 {
			childIndent := indent + "│   "
			if isLast {
				childIndent = indent + "    "
			}
			sb.WriteString(FormatTree(node.Children, childIndent, maxWidth, maxDepth, currentDepth+1))
		}
	}
	return sb.String()
}

// RenderTree measures and renders a tree in one step
func RenderTree(tree []*storage.TreeNode) string {
	maxWidth, maxDepth := 0, 0
	CalcTreeMaxWidth(tree, &maxWidth, 0, &maxDepth)
	return FormatTree(tree, "", maxWidth, maxDepth, 0)
}

// FormatNodes renders nodes as an aligned table of identity, roles and package
func FormatNodes(nodes []*graph.Node) string {
	width := 0
	for _, n := range nodes {
		if w := len(ShortName(n.ID)); w > width {
			width = w
		}
	}
	var sb strings.Builder
	for _, n := range nodes {
		pkg := n.Package
		if n.Placeholder {
			pkg = "(external)"
		}
		sb.WriteString(fmt.Sprintf("%-*s  %-28s %s\n", width, ShortName(n.ID), Roles(n.Roles), pkg))
	}
	return sb.String()
}

// FormatEdges renders edges as "from --kind--> to  label"
func FormatEdges(edges []*graph.Edge) string {
	var sb strings.Builder
	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("%s --%s--> %s", ShortName(e.From), e.Kind, ShortName(e.To)))
		if e.Label != "" {
			sb.WriteString("  " + e.Label)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
