// Package export renders a frozen connection graph as PlantUML, Mermaid,
// Markdown or JSON. Renderers only use the graph's read-only query surface.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
)

// Format names an output notation
type Format string

const (
	FormatPlantUML Format = "plantuml"
	FormatMermaid  Format = "mermaid"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats
var Formats = []Format{FormatPlantUML, FormatMermaid, FormatMarkdown, FormatJSON}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatPlantUML, FormatMermaid, FormatMarkdown, FormatJSON:
		return f, nil
	case "puml":
		return FormatPlantUML, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (want plantuml, mermaid, markdown or json)", s)
}

// FormatFromPath guesses the format from a file extension, defaulting to PlantUML
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mmd", ".mermaid":
		return FormatMermaid
	case ".md", ".markdown":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	}
	return FormatPlantUML
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Title    string
	Warnings diag.Warnings
	// Generated is printed in Markdown headers when set
	Generated time.Time
	// GroupPackages wraps nodes in package blocks / subgraphs
	GroupPackages bool
}

// DefaultExportOptions returns default export options
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Title:         "服务连接图",
		GroupPackages: true,
	}
}

// Exporter renders one graph
type Exporter struct {
	g    *graph.Graph
	opts ExportOptions
}

// NewExporter creates a new exporter
func NewExporter(g *graph.Graph, opts ExportOptions) *Exporter {
	return &Exporter{g: g, opts: opts}
}

// Export writes the graph in the given format
func (e *Exporter) Export(w io.Writer, format Format) error {
	switch format {
	case FormatPlantUML:
		return e.PlantUML(w)
	case FormatMermaid:
		return e.Mermaid(w)
	case FormatMarkdown:
		return e.Markdown(w)
	case FormatJSON:
		return e.JSON(w)
	}
	return fmt.Errorf("unknown format %q", format)
}

// Markdown writes a report: summary, Mermaid diagram, per-package component
// tables, external targets and warnings
func (e *Exporter) Markdown(w io.Writer) error {
	ew := &errWriter{w: w}
	stats := e.g.Stats()

	fmt.Fprintf(ew, "# %s\n\n", e.opts.Title)
	if !e.opts.Generated.IsZero() {
		fmt.Fprintf(ew, "> 生成时间: %s\n", e.opts.Generated.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(ew, "> 组件: %d | 外部目标: %d | 连接: %d", stats.Nodes-stats.Placeholders, stats.Placeholders, stats.Edges)
	for _, k := range graph.EdgeKinds {
		if n := stats.EdgesByKind[k]; n > 0 {
			fmt.Fprintf(ew, " | %s: %d", k, n)
		}
	}
	fmt.Fprintf(ew, "\n\n")

	if stats.Nodes > 0 {
		fmt.Fprintf(ew, "## 架构图\n\n```mermaid\n")
		if err := e.Mermaid(ew); err != nil {
			return err
		}
		fmt.Fprintf(ew, "```\n\n")
	}

	fmt.Fprintf(ew, "## 组件详解\n\n")
	for _, group := range e.g.Packages() {
		e.writePackageSection(ew, group)
	}

	e.writeExternalTable(ew)
	e.writeWarnings(ew)
	return ew.err
}

// writePackageSection writes the components of one package
func (e *Exporter) writePackageSection(w io.Writer, group graph.PackageGroup) {
	var nodes []graph.Node
	for _, n := range group.Nodes {
		if !n.Placeholder {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return
	}
	name := group.Name
	if name == "" {
		name = graph.DefaultPackage
	}
	fmt.Fprintf(w, "### 📦 %s\n\n", name)
	fmt.Fprintf(w, "| 组件 | 角色 | 调用方 | 依赖 |\n")
	fmt.Fprintf(w, "|------|------|--------|------|\n")
	for _, n := range nodes {
		in := e.g.Neighbors(n.ID, graph.Incoming)
		out := e.g.Neighbors(n.ID, graph.Outgoing)
		fmt.Fprintf(w, "| `%s` | %s | %s | %s |\n", n.Label, joinRoles(n.Roles), nodeList(in), nodeList(out))
	}
	fmt.Fprintf(w, "\n")
}

// writeExternalTable lists placeholder targets and who depends on them
func (e *Exporter) writeExternalTable(w io.Writer) {
	var external []graph.Node
	for _, n := range e.g.Nodes() {
		if n.Placeholder {
			external = append(external, n)
		}
	}
	if len(external) == 0 {
		return
	}
	fmt.Fprintf(w, "## 外部目标\n\n")
	fmt.Fprintf(w, "| 类型 | 名称 | 调用方 | 标签 |\n")
	fmt.Fprintf(w, "|------|------|--------|------|\n")
	for _, n := range external {
		kind, _ := n.External()
		edges := e.g.EdgesOf(n.ID, graph.Incoming)
		var from, labels []string
		for _, edge := range edges {
			if src, ok := e.g.Node(edge.From); ok {
				from = appendUnique(from, "`"+src.Label+"`")
			}
			labels = appendUnique(labels, "`"+edge.Label+"`")
		}
		fmt.Fprintf(w, "| %s | `%s` | %s | %s |\n", kind, n.Label, strings.Join(from, ", "), strings.Join(labels, ", "))
	}
	fmt.Fprintf(w, "\n")
}

func (e *Exporter) writeWarnings(w io.Writer) {
	if len(e.opts.Warnings) == 0 {
		return
	}
	ws := append(diag.Warnings(nil), e.opts.Warnings...)
	ws.Sort()
	fmt.Fprintf(w, "## 警告\n\n")
	fmt.Fprintf(w, "| 级别 | 类型 | 对象 | 说明 |\n")
	fmt.Fprintf(w, "|------|------|------|------|\n")
	for _, warn := range ws {
		fmt.Fprintf(w, "| %s | %s | `%s` | %s |\n", warn.Severity, warn.Kind, warn.Subject, escapeCell(warn.Message))
	}
	fmt.Fprintf(w, "\n")
}

// Helper functions

func joinRoles(roles []marker.Kind) string {
	if len(roles) == 0 {
		return "-"
	}
	s := make([]string, len(roles))
	for i, r := range roles {
		s[i] = string(r)
	}
	return strings.Join(s, ", ")
}

func nodeList(nodes []graph.Node) string {
	if len(nodes) == 0 {
		return "-"
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = "`" + n.Label + "`"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// errWriter keeps the first write error so renderers can use fmt.Fprintf freely
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	ew.err = err
	return n, err
}
