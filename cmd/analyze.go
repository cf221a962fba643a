package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/connviz/internal/analysis"
	"github.com/zheng/connviz/internal/export"
)

func analyzeCmd() *cobra.Command {
	var flags configFlags
	var outputPath string
	var format string
	var title string
	var noStore bool

	cmd := &cobra.Command{
		Use:   "analyze [path...]",
		Short: "分析编译产物 (.class/.jar/.war) 并构建连接图",
		Long: `扫描目录、class 文件或 jar/war 包，识别 REST、消息与存储相关的标记，
构建组件之间的连接图并写入数据库。

示例：
  connviz analyze target/classes
  connviz analyze app.jar -o graph.puml
  connviz analyze build/ --group-by package --exclude "**/test/"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}

			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			res, err := analysis.RunPaths(cmd.Context(), roots, cfg)
			if err != nil {
				return fmt.Errorf("分析失败: %w", err)
			}
			printSummary(res)

			if !noStore {
				if err := saveResult(DbPath, res); err != nil {
					return err
				}
				fmt.Printf("写入数据库: %s\n", DbPath)
			}

			if outputPath != "" || format != "" {
				opts := export.DefaultExportOptions()
				opts.Warnings = res.Warnings
				if title != "" {
					opts.Title = title
				}
				if err := writeExport(res.Graph, opts, outputPath, format); err != nil {
					return fmt.Errorf("导出失败: %w", err)
				}
				if outputPath != "" && outputPath != "-" {
					fmt.Fprintf(os.Stderr, "导出: %s\n", outputPath)
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "同时导出图表到文件 (格式由扩展名决定，- 表示 stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "导出格式 (plantuml/mermaid/markdown/json)")
	cmd.Flags().StringVar(&title, "title", "", "图标题")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "不写入数据库")

	return cmd
}
