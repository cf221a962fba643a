package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/display"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/impact"
	"github.com/zheng/connviz/internal/marker"
	"github.com/zheng/connviz/internal/storage"
)

func upstreamCmd() *cobra.Command {
	return treeCmd("upstream", "查询组件的上游 (调用方、发送方)", "⬆️ 上游", true)
}

func downstreamCmd() *cobra.Command {
	return treeCmd("downstream", "查询组件的下游 (被调用的接口、目的地、实体)", "⬇️ 下游", false)
}

func treeCmd(use, short, header string, upstream bool) *cobra.Command {
	var depth int
	var format string
	var selectN int

	cmd := &cobra.Command{
		Use:   use + " <component>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			node, err := resolveNode(db, args[0], selectN)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				var nodes []*graph.Node
				if upstream {
					nodes, err = db.GetUpstream(node.ID, depth)
				} else {
					nodes, err = db.GetDownstream(node.ID, depth)
				}
				if err != nil {
					return err
				}
				return outputJSON(nodes)
			case "text":
			default:
				return fmt.Errorf("未知输出格式: %s", format)
			}

			// trees need a bound; 0 walks until every path closes a cycle
			treeDepth := depth
			if treeDepth <= 0 {
				treeDepth = 1 << 10
			}
			var tree []*storage.TreeNode
			if upstream {
				tree, err = db.GetUpstreamTree(node.ID, treeDepth)
			} else {
				tree, err = db.GetDownstreamTree(node.ID, treeDepth)
			}
			if err != nil {
				return fmt.Errorf("获取连接树失败: %w", err)
			}

			maxWidth := len(display.ShortName(node.ID))
			maxDepth := 0
			display.CalcTreeMaxWidth(tree, &maxWidth, 0, &maxDepth)

			fmt.Println("📍 当前组件")
			fmt.Printf("%-*s  %s\n\n", maxWidth+maxDepth*4, display.ShortName(node.ID), display.Roles(node.Roles))
			if len(tree) == 0 {
				fmt.Println(header)
				fmt.Println("└── (无)")
				return nil
			}
			fmt.Printf("%s (深度 %d)\n", header, depth)
			fmt.Print(display.FormatTree(tree, "", maxWidth, maxDepth, 0))
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 3, "递归深度 (0=无限)")
	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	cmd.Flags().IntVar(&selectN, "select", 0, "当匹配到多个组件时，直接选择第N个（跳过交互提示）")

	return cmd
}

func searchCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "搜索组件 (类名、包名或外部目标)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			nodes, err := db.FindNodesByPattern(args[0])
			if err != nil {
				return err
			}
			return printNodes(nodes, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	return cmd
}

func listCmd() *cobra.Command {
	var format string
	var role string
	var packages []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出所有组件",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			var nodes []*graph.Node
			switch {
			case role != "":
				nodes, err = db.GetNodesByRole(marker.Kind(role))
			case len(packages) > 0:
				nodes, err = db.GetNodesByPackage(packages)
			default:
				nodes, err = db.GetAllNodes()
			}
			if err != nil {
				return err
			}
			return printNodes(nodes, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	cmd.Flags().StringVar(&role, "role", "", "只列出具有该角色的组件 (rest-endpoint, mq-listener, ...)")
	cmd.Flags().StringSliceVar(&packages, "package", nil, "只列出这些包中的组件")
	return cmd
}

func printNodes(nodes []*graph.Node, format string) error {
	if format == "json" {
		return outputJSON(nodes)
	}
	if len(nodes) == 0 {
		fmt.Println("(无)")
		return nil
	}
	fmt.Print(display.FormatNodes(nodes))
	fmt.Printf("\n共 %d 个组件\n", len(nodes))
	return nil
}

func edgesCmd() *cobra.Command {
	var format string
	var kind string
	var node string

	cmd := &cobra.Command{
		Use:   "edges",
		Short: "列出连接",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			var edges []*graph.Edge
			switch {
			case node != "":
				n, err := resolveNode(db, node, 0)
				if err != nil {
					return err
				}
				edges, err = db.GetEdgesForNode(n.ID)
				if err != nil {
					return err
				}
			case kind != "":
				edges, err = db.GetEdgesByKind(graph.EdgeKind(kind))
			default:
				edges, err = db.GetAllEdges()
			}
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(edges)
			}
			fmt.Print(display.FormatEdges(edges))
			fmt.Printf("\n共 %d 个连接\n", len(edges))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	cmd.Flags().StringVar(&kind, "kind", "", "连接类型 (rest/ws/messaging/storage/dependency)")
	cmd.Flags().StringVar(&node, "node", "", "只列出与该组件相关的连接")
	return cmd
}

func warningsCmd() *cobra.Command {
	var format string
	var kind string

	cmd := &cobra.Command{
		Use:   "warnings",
		Short: "列出上次分析记录的警告",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ws, err := db.GetWarnings(diag.Kind(kind))
			if err != nil {
				return err
			}
			if format == "json" {
				return outputJSON(ws)
			}
			for _, w := range ws {
				fmt.Println(w.String())
			}
			fmt.Printf("\n共 %d 个警告\n", len(ws))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	cmd.Flags().StringVar(&kind, "kind", "", "警告类型 (MalformedArtifact/UnresolvedReference/DuplicateIdentity)")
	return cmd
}

func statsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "显示连接图统计信息",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			g, warnings, err := db.LoadGraph()
			if err != nil {
				return err
			}
			st := g.Stats()
			if format == "json" {
				return outputJSON(st)
			}

			savedAt, _ := db.GetMeta(storage.MetaSavedAt)
			runID, _ := db.GetMeta(storage.MetaRunID)
			fmt.Printf("数据库: %s\n", DbPath)
			if savedAt != "" {
				fmt.Printf("分析时间: %s (%s)\n", savedAt, runID)
			}
			fmt.Printf("组件: %d, 外部目标: %d\n", st.Nodes-st.Placeholders, st.Placeholders)
			fmt.Printf("连接: %d\n", st.Edges)
			for _, k := range graph.EdgeKinds {
				fmt.Printf("  %-10s %d\n", k, st.EdgesByKind[k])
			}
			fmt.Println("角色:")
			for _, k := range marker.Kinds {
				if n := st.Roles[k]; n > 0 {
					fmt.Printf("  %-14s %d\n", k, n)
				}
			}
			fmt.Printf("警告: %d\n", len(warnings))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	return cmd
}

func impactCmd() *cobra.Command {
	var upstreamDepth int
	var downstreamDepth int
	var format string
	var selectN int

	cmd := &cobra.Command{
		Use:   "impact <component>",
		Short: "分析组件变更的影响范围",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			node, err := resolveNode(db, args[0], selectN)
			if err != nil {
				return err
			}
			report, err := impact.NewAnalyzer(db).AnalyzeNode(node, upstreamDepth, downstreamDepth)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return outputJSON(report)
			case "markdown":
				fmt.Print(report.FormatMarkdown())
			default:
				fmt.Print(report.FormatTree())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&upstreamDepth, "upstream-depth", 3, "上游递归深度 (0=无限)")
	cmd.Flags().IntVar(&downstreamDepth, "downstream-depth", 2, "下游递归深度 (0=无限)")
	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json/markdown)")
	cmd.Flags().IntVar(&selectN, "select", 0, "当匹配到多个组件时，直接选择第N个（跳过交互提示）")
	return cmd
}
