package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/zheng/connviz/internal/graph"
)

// PlantUML element keywords for placeholders, by the relation they stand in for
var pumlExternal = map[graph.EdgeKind]string{
	graph.EdgeREST:      "cloud",
	graph.EdgeWebSocket: "interface",
	graph.EdgeMessaging: "queue",
	graph.EdgeStorage:   "database",
}

var pumlArrow = map[graph.EdgeKind]string{
	graph.EdgeREST:       "-->",
	graph.EdgeWebSocket:  "-[dashed]->",
	graph.EdgeMessaging:  "..>",
	graph.EdgeStorage:    "-[bold]->",
	graph.EdgeDependency: "-[dotted]->",
}

const pumlIndent = "  "

// PlantUML writes a component diagram
func (e *Exporter) PlantUML(w io.Writer) error {
	ew := &errWriter{w: w}
	names := newAliases(pumlAlias)

	fmt.Fprintf(ew, "@startuml\n")
	if e.opts.Title != "" {
		fmt.Fprintf(ew, "title %s\n", e.opts.Title)
	}

	for _, group := range e.g.Packages() {
		indent := ""
		boxed := e.opts.GroupPackages && group.Name != ""
		if boxed {
			fmt.Fprintf(ew, "package %q {\n", group.Name)
			indent = pumlIndent
		}
		for _, n := range group.Nodes {
			fmt.Fprintf(ew, "%s%s\n", indent, pumlElement(n, names.of(n.ID)))
		}
		if boxed {
			fmt.Fprintf(ew, "}\n")
		}
	}

	for _, edge := range e.g.Edges() {
		fmt.Fprintf(ew, "%s %s %s", names.of(edge.From), pumlArrow[edge.Kind], names.of(edge.To))
		if edge.Label != "" {
			fmt.Fprintf(ew, " : %s", pumlText(edge.Label))
		}
		fmt.Fprintf(ew, "\n")
	}

	fmt.Fprintf(ew, "@enduml\n")
	return ew.err
}

func pumlElement(n graph.Node, alias string) string {
	keyword := "component"
	if kind, ok := n.External(); ok {
		keyword = pumlExternal[kind]
	}
	s := fmt.Sprintf("%s %q as %s", keyword, pumlText(n.Label), alias)
	if !n.Placeholder && len(n.Roles) > 0 {
		s += " <<" + joinRoles(n.Roles) + ">>"
	}
	return s
}

// pumlText keeps labels on one line and free of quote characters
func pumlText(s string) string {
	return strings.NewReplacer("\n", " ", "\"", "'").Replace(s)
}
