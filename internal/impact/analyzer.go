// Package impact reports which components are affected when one changes.
package impact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zheng/connviz/internal/display"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/storage"
)

// ErrNotFound is returned when no stored component matches a name
var ErrNotFound = errors.New("component not found")

// AmbiguousError lists the components a name matched
type AmbiguousError struct {
	Name    string
	Matches []*graph.Node
}

func (e *AmbiguousError) Error() string {
	ids := make([]string, len(e.Matches))
	for i, n := range e.Matches {
		ids[i] = n.ID
	}
	return fmt.Sprintf("ambiguous component name %q, found %d matches: %s", e.Name, len(e.Matches), strings.Join(ids, ", "))
}

// Analyzer performs impact analysis on the stored connection graph
type Analyzer struct {
	db *storage.DB
}

// NewAnalyzer creates a new impact analyzer
func NewAnalyzer(db *storage.DB) *Analyzer {
	return &Analyzer{db: db}
}

// ImpactReport represents the impact analysis of a component change
type ImpactReport struct {
	Target             *graph.Node   `json:"target"`
	DirectUpstream     []*graph.Node `json:"direct_upstream"`
	IndirectUpstream   []*graph.Node `json:"indirect_upstream"`
	DirectDownstream   []*graph.Node `json:"direct_downstream"`
	IndirectDownstream []*graph.Node `json:"indirect_downstream"`
	// Inbound are the direct connections into the target; a change to a
	// route, destination or table breaks exactly these
	Inbound []*graph.Edge `json:"inbound"`
}

// Resolve finds the component a name refers to: an exact identity, or a
// single pattern match
func (a *Analyzer) Resolve(name string) (*graph.Node, error) {
	if n, err := a.db.GetNodeByID(name); err == nil {
		return n, nil
	}
	nodes, err := a.db.FindNodesByPattern(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find component: %w", err)
	}
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case 1:
		return nodes[0], nil
	}
	// an exact label match wins over looser matches
	if nodes[0].Label == name && nodes[1].Label != name {
		return nodes[0], nil
	}
	return nil, &AmbiguousError{Name: name, Matches: nodes}
}

// AnalyzeImpact analyzes the impact of changing a component. A depth of 0
// is unlimited; 1 reports direct neighbors only.
func (a *Analyzer) AnalyzeImpact(name string, upstreamDepth, downstreamDepth int) (*ImpactReport, error) {
	target, err := a.Resolve(name)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeNode(target, upstreamDepth, downstreamDepth)
}

// AnalyzeNode analyzes the impact of changing an already resolved component
func (a *Analyzer) AnalyzeNode(target *graph.Node, upstreamDepth, downstreamDepth int) (*ImpactReport, error) {
	report := &ImpactReport{Target: target}
	var err error

	report.DirectUpstream, err = a.db.GetDirectUpstream(target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get direct upstream: %w", err)
	}
	if upstreamDepth != 1 {
		all, err := a.db.GetUpstream(target.ID, upstreamDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to get upstream: %w", err)
		}
		report.IndirectUpstream = without(all, report.DirectUpstream)
	}

	report.DirectDownstream, err = a.db.GetDirectDownstream(target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get direct downstream: %w", err)
	}
	if downstreamDepth != 1 {
		all, err := a.db.GetDownstream(target.ID, downstreamDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to get downstream: %w", err)
		}
		report.IndirectDownstream = without(all, report.DirectDownstream)
	}

	edges, err := a.db.GetEdgesForNode(target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get edges: %w", err)
	}
	for _, e := range edges {
		if e.To == target.ID {
			report.Inbound = append(report.Inbound, e)
		}
	}
	return report, nil
}

// without filters out the nodes already listed in direct
func without(all, direct []*graph.Node) []*graph.Node {
	directMap := make(map[string]bool, len(direct))
	for _, n := range direct {
		directMap[n.ID] = true
	}
	var out []*graph.Node
	for _, n := range all {
		if !directMap[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// FormatMarkdown formats the impact report as markdown
func (r *ImpactReport) FormatMarkdown() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## 变更影响分析: %s\n\n", r.Target.ID))
	sb.WriteString(fmt.Sprintf("**角色:** %s\n\n", display.Roles(r.Target.Roles)))
	if r.Target.Package != "" {
		sb.WriteString(fmt.Sprintf("**包:** %s\n\n", r.Target.Package))
	}

	// Inbound connections
	if len(r.Inbound) > 0 {
		sb.WriteString("### 入站连接 (修改路由、目的地或表名会影响)\n\n")
		sb.WriteString("| 来源 | 类型 | 标签 |\n")
		sb.WriteString("|------|------|------|\n")
		for _, e := range r.Inbound {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", display.ShortName(e.From), e.Kind, e.Label))
		}
		sb.WriteString("\n")
	}

	writeSection(&sb, "### 直接上游 (需检查是否需要同步修改)", "_无直接上游_", r.DirectUpstream)
	if len(r.IndirectUpstream) > 0 {
		writeSection(&sb, "### 间接上游 (可能受影响)", "", r.IndirectUpstream)
	}
	writeSection(&sb, "### 下游依赖 (本组件调用、发送或存储到)", "_无下游依赖_", r.DirectDownstream)
	if len(r.IndirectDownstream) > 0 {
		writeSection(&sb, "### 间接下游依赖", "", r.IndirectDownstream)
	}

	return sb.String()
}

func writeSection(sb *strings.Builder, header, empty string, nodes []*graph.Node) {
	sb.WriteString(header + "\n\n")
	if len(nodes) == 0 {
		sb.WriteString(empty + "\n\n")
		return
	}
	sb.WriteString("| 组件 | 角色 | 包 |\n")
	sb.WriteString("|------|------|----|\n")
	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", display.ShortName(n.ID), display.Roles(n.Roles), n.Package))
	}
	sb.WriteString("\n")
}

// FormatTree formats the impact report as a tree structure
func (r *ImpactReport) FormatTree() string {
	var sb strings.Builder

	allUpstream := append(append([]*graph.Node{}, r.DirectUpstream...), r.IndirectUpstream...)
	allDownstream := append(append([]*graph.Node{}, r.DirectDownstream...), r.IndirectDownstream...)

	maxWidth := len(display.ShortName(r.Target.ID))
	for _, n := range append(append([]*graph.Node{}, allUpstream...), allDownstream...) {
		if w := len(display.ShortName(n.ID)); w > maxWidth {
			maxWidth = w
		}
	}

	// Target component
	sb.WriteString("📍 当前组件\n")
	sb.WriteString(fmt.Sprintf("%-*s  %s\n\n", maxWidth, display.ShortName(r.Target.ID), display.Roles(r.Target.Roles)))

	writeList(&sb, "⬆️ 上游", allUpstream, maxWidth)
	sb.WriteString("\n")
	writeList(&sb, "⬇️ 下游", allDownstream, maxWidth)

	return sb.String()
}

func writeList(sb *strings.Builder, header string, nodes []*graph.Node, width int) {
	if len(nodes) == 0 {
		sb.WriteString(header + "\n")
		sb.WriteString("└── (无)\n")
		return
	}
	sb.WriteString(fmt.Sprintf("%s (共 %d 个)\n", header, len(nodes)))
	for i, n := range nodes {
		prefix := "├──"
		if i == len(nodes)-1 {
			prefix = "└──"
		}
		sb.WriteString(fmt.Sprintf("%s %-*s  %s\n", prefix, width, display.ShortName(n.ID), display.Roles(n.Roles)))
	}
}

// Summary returns a brief summary of the impact report
func (r *ImpactReport) Summary() string {
	return fmt.Sprintf(
		"Target: %s, Direct Upstream: %d, Indirect Upstream: %d, Direct Downstream: %d, Indirect Downstream: %d",
		r.Target.ID,
		len(r.DirectUpstream),
		len(r.IndirectUpstream),
		len(r.DirectDownstream),
		len(r.IndirectDownstream),
	)
}
