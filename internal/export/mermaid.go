package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/zheng/connviz/internal/graph"
)

var mermaidArrow = map[graph.EdgeKind]string{
	graph.EdgeREST:       "-->",
	graph.EdgeWebSocket:  "<-->",
	graph.EdgeMessaging:  "-.->",
	graph.EdgeStorage:    "==>",
	graph.EdgeDependency: "--o",
}

// Mermaid writes a flowchart with one subgraph per package
func (e *Exporter) Mermaid(w io.Writer) error {
	ew := &errWriter{w: w}
	ids := newAliases(makeNodeID)

	fmt.Fprintf(ew, "flowchart LR\n")
	for i, group := range e.g.Packages() {
		indent := "    "
		boxed := e.opts.GroupPackages && group.Name != ""
		if boxed {
			fmt.Fprintf(ew, "    subgraph pkg%d [%s]\n", i, mermaidText(group.Name))
			indent = "        "
		}
		for _, n := range group.Nodes {
			fmt.Fprintf(ew, "%s%s\n", indent, mermaidNode(n, ids.of(n.ID)))
		}
		if boxed {
			fmt.Fprintf(ew, "    end\n")
		}
	}

	if edges := e.g.Edges(); len(edges) > 0 {
		fmt.Fprintf(ew, "\n    %%%% 连接关系\n")
		for _, edge := range edges {
			arrow := mermaidArrow[edge.Kind]
			if edge.Label != "" {
				fmt.Fprintf(ew, "    %s %s|%s| %s\n", ids.of(edge.From), arrow, mermaidText(edge.Label), ids.of(edge.To))
			} else {
				fmt.Fprintf(ew, "    %s %s %s\n", ids.of(edge.From), arrow, ids.of(edge.To))
			}
		}
	}
	return ew.err
}

// mermaidNode picks a shape per external kind, rectangle for components
func mermaidNode(n graph.Node, id string) string {
	label := mermaidText(n.Label)
	kind, _ := n.External()
	switch kind {
	case graph.EdgeREST:
		return fmt.Sprintf("%s((%s))", id, label)
	case graph.EdgeWebSocket:
		return fmt.Sprintf("%s{{%s}}", id, label)
	case graph.EdgeMessaging:
		return fmt.Sprintf("%s>%s]", id, label)
	case graph.EdgeStorage:
		return fmt.Sprintf("%s[(%s)]", id, label)
	}
	return fmt.Sprintf("%s[%s]", id, label)
}

// mermaidText quotes a label so braces and slashes are not parsed as syntax
func mermaidText(s string) string {
	s = strings.NewReplacer("\"", "#quot;", "\n", " ").Replace(s)
	return `"` + s + `"`
}
