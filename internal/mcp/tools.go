package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/display"
	"github.com/zheng/connviz/internal/export"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/impact"
	"github.com/zheng/connviz/internal/marker"
	"github.com/zheng/connviz/internal/storage"
)

// Arguments structs

type SearchArgs struct {
	Pattern string `json:"pattern" jsonschema:"组件名称的一部分（类名、包名或外部目标）"`
	Role    string `json:"role,omitempty" jsonschema:"只返回具有该角色的组件，例如 rest-endpoint"`
	Limit   int    `json:"limit,omitempty" jsonschema:"最多返回的组件数量，默认 50"`
}

type ConnectionsArgs struct {
	Node      string `json:"node" jsonschema:"组件名称（支持模糊匹配）"`
	Direction string `json:"direction,omitempty" jsonschema:"方向：upstream（上游）、downstream（下游）、both（双向），默认 both"`
	Depth     int    `json:"depth,omitempty" jsonschema:"递归深度，默认 2"`
}

type ImpactArgs struct {
	Node  string `json:"node" jsonschema:"要分析的组件名称（支持模糊匹配）"`
	Limit int    `json:"limit,omitempty" jsonschema:"每个分类最多返回的组件数量，默认 50"`
}

type EdgesArgs struct {
	Kind  string `json:"kind,omitempty" jsonschema:"连接类型：rest、ws、messaging、storage、dependency；为空时返回全部"`
	Node  string `json:"node,omitempty" jsonschema:"只返回与该组件相关的连接"`
	Limit int    `json:"limit,omitempty" jsonschema:"最多返回的连接数量，默认 50"`
}

type ExportArgs struct {
	Format string `json:"format,omitempty" jsonschema:"输出格式：plantuml、mermaid、markdown、json，默认 mermaid"`
	Title  string `json:"title,omitempty" jsonschema:"图标题"`
}

type WarningsArgs struct {
	Kind  string `json:"kind,omitempty" jsonschema:"警告类型：MalformedArtifact、UnresolvedReference、DuplicateIdentity"`
	Limit int    `json:"limit,omitempty" jsonschema:"最多返回的警告数量，默认 50"`
}

type StatsArgs struct{}

func (s *Server) registerTools() {
	addTool(s, "search", "搜索组件，支持模糊匹配，可按角色过滤", s.search)
	addTool(s, "connections", "查询组件的上游调用方和下游依赖，以树形式返回", s.connections)
	addTool(s, "impact", "分析组件变更的影响范围，返回上游调用方、下游依赖以及入站连接", s.impact)
	addTool(s, "edges", "列出连接，可按类型或组件过滤", s.edges)
	addTool(s, "export", "将连接图导出为 PlantUML、Mermaid、Markdown 或 JSON", s.export)
	addTool(s, "warnings", "列出分析时记录的警告", s.warnings)
	addTool(s, "stats", "返回连接图的统计信息", s.stats)
}

// addTool registers a text-producing handler; handler errors become tool errors
func addTool[T any](s *Server, name, description string, fn func(T) (string, error)) {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, any, error) {
		text, err := fn(args)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})
}

func (s *Server) search(args SearchArgs) (string, error) {
	if args.Pattern == "" && args.Role == "" {
		return "", fmt.Errorf("需要提供搜索模式或角色")
	}
	var (
		nodes []*graph.Node
		err   error
	)
	if args.Pattern != "" {
		nodes, err = s.db.FindNodesByPattern(args.Pattern)
	} else {
		nodes, err = s.db.GetNodesByRole(marker.Kind(args.Role))
	}
	if err != nil {
		return "", err
	}
	if args.Pattern != "" && args.Role != "" {
		filtered := nodes[:0]
		for _, n := range nodes {
			if n.HasRole(marker.Kind(args.Role)) {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	if len(nodes) == 0 {
		return "_未找到匹配的组件_\n", nil
	}

	limit := limitOr(args.Limit)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## 搜索结果 (%d)\n\n", len(nodes)))
	sb.WriteString("| 组件 | 角色 | 包 |\n")
	sb.WriteString("|------|------|----|\n")
	for i, n := range nodes {
		if i == limit {
			sb.WriteString(fmt.Sprintf("\n_（共 %d 个，仅显示前 %d 个）_\n", len(nodes), limit))
			break
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", n.ID, display.Roles(n.Roles), n.Package))
	}
	return sb.String(), nil
}

func (s *Server) connections(args ConnectionsArgs) (string, error) {
	node, err := s.findNode(args.Node)
	if err != nil {
		return "", err
	}
	depth := args.Depth
	if depth <= 0 {
		depth = 2
	}
	direction := args.Direction
	if direction == "" {
		direction = "both"
	}
	if direction != "upstream" && direction != "downstream" && direction != "both" {
		return "", fmt.Errorf("未知方向: %s", direction)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## 连接关系: %s\n\n", node.ID))
	sb.WriteString(fmt.Sprintf("**角色:** %s\n\n", display.Roles(node.Roles)))
	if direction != "downstream" {
		tree, err := s.db.GetUpstreamTree(node.ID, depth)
		if err != nil {
			return "", err
		}
		writeTree(&sb, "### 上游 (调用或发送到本组件)", "_无上游组件_", tree)
	}
	if direction != "upstream" {
		tree, err := s.db.GetDownstreamTree(node.ID, depth)
		if err != nil {
			return "", err
		}
		writeTree(&sb, "### 下游 (本组件调用、发送或存储到)", "_无下游组件_", tree)
	}
	return sb.String(), nil
}

func writeTree(sb *strings.Builder, header, empty string, tree []*storage.TreeNode) {
	sb.WriteString(header + "\n\n")
	if len(tree) == 0 {
		sb.WriteString(empty + "\n\n")
		return
	}
	sb.WriteString("```\n")
	sb.WriteString(display.RenderTree(tree))
	sb.WriteString("```\n\n")
}

func (s *Server) impact(args ImpactArgs) (string, error) {
	node, err := s.findNode(args.Node)
	if err != nil {
		return "", err
	}
	report, err := impact.NewAnalyzer(s.db).AnalyzeNode(node, 3, 2)
	if err != nil {
		return "", err
	}
	limit := limitOr(args.Limit)
	for _, list := range []*[]*graph.Node{
		&report.DirectUpstream, &report.IndirectUpstream,
		&report.DirectDownstream, &report.IndirectDownstream,
	} {
		if len(*list) > limit {
			*list = (*list)[:limit]
		}
	}
	return report.FormatMarkdown(), nil
}

func (s *Server) edges(args EdgesArgs) (string, error) {
	var (
		edges []*graph.Edge
		err   error
	)
	switch {
	case args.Node != "":
		var node *graph.Node
		if node, err = s.findNode(args.Node); err != nil {
			return "", err
		}
		edges, err = s.db.GetEdgesForNode(node.ID)
	case args.Kind != "":
		edges, err = s.db.GetEdgesByKind(graph.EdgeKind(args.Kind))
	default:
		edges, err = s.db.GetAllEdges()
	}
	if err != nil {
		return "", err
	}
	if args.Node != "" && args.Kind != "" {
		filtered := edges[:0]
		for _, e := range edges {
			if string(e.Kind) == args.Kind {
				filtered = append(filtered, e)
			}
		}
		edges = filtered
	}
	if len(edges) == 0 {
		return "_无连接_\n", nil
	}

	limit := limitOr(args.Limit)
	total := len(edges)
	if total > limit {
		edges = edges[:limit]
	}
	out := "```\n" + display.FormatEdges(edges) + "```\n"
	if total > limit {
		out += fmt.Sprintf("\n_（共 %d 个，仅显示前 %d 个）_\n", total, limit)
	}
	return out, nil
}

func (s *Server) export(args ExportArgs) (string, error) {
	format := export.FormatMermaid
	if args.Format != "" {
		f, err := export.ParseFormat(args.Format)
		if err != nil {
			return "", err
		}
		format = f
	}
	g, warnings, err := s.db.LoadGraph()
	if err != nil {
		return "", err
	}
	opts := export.DefaultExportOptions()
	opts.Warnings = warnings
	if args.Title != "" {
		opts.Title = args.Title
	}
	var sb strings.Builder
	if err := export.NewExporter(g, opts).Export(&sb, format); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (s *Server) warnings(args WarningsArgs) (string, error) {
	ws, err := s.db.GetWarnings(diag.Kind(args.Kind))
	if err != nil {
		return "", err
	}
	if len(ws) == 0 {
		return "_无警告_\n", nil
	}
	limit := limitOr(args.Limit)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## 警告 (%d)\n\n", len(ws)))
	for i, w := range ws {
		if i == limit {
			sb.WriteString(fmt.Sprintf("\n_（共 %d 个，仅显示前 %d 个）_\n", len(ws), limit))
			break
		}
		sb.WriteString("- " + w.String() + "\n")
	}
	return sb.String(), nil
}

func (s *Server) stats(StatsArgs) (string, error) {
	g, _, err := s.db.LoadGraph()
	if err != nil {
		return "", err
	}
	st := g.Stats()
	savedAt, err := s.db.GetMeta(storage.MetaSavedAt)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## 连接图统计\n\n")
	sb.WriteString(fmt.Sprintf("- 组件: %d\n", st.Nodes-st.Placeholders))
	sb.WriteString(fmt.Sprintf("- 外部目标: %d\n", st.Placeholders))
	sb.WriteString(fmt.Sprintf("- 连接: %d\n", st.Edges))
	for _, k := range graph.EdgeKinds {
		sb.WriteString(fmt.Sprintf("  - %s: %d\n", k, st.EdgesByKind[k]))
	}
	for _, k := range marker.Kinds {
		if n := st.Roles[k]; n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", k, n))
		}
	}
	if savedAt != "" {
		sb.WriteString(fmt.Sprintf("- 分析时间: %s\n", savedAt))
	}
	return sb.String(), nil
}
