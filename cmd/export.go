package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zheng/connviz/internal/export"
	"github.com/zheng/connviz/internal/storage"
)

func exportCmd() *cobra.Command {
	var outputFile string
	var format string
	var title string
	var noPackages bool
	var noWarnings bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出连接图",
		Long: `将数据库中的连接图导出为 PlantUML、Mermaid、Markdown 或 JSON。
未指定 --format 时按输出文件扩展名决定，默认 PlantUML。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			g, warnings, err := db.LoadGraph()
			if err != nil {
				return fmt.Errorf("读取连接图失败: %w", err)
			}

			opts := export.DefaultExportOptions()
			opts.GroupPackages = !noPackages
			if !noWarnings {
				opts.Warnings = warnings
			}
			if title != "" {
				opts.Title = title
			}
			if savedAt, _ := db.GetMeta(storage.MetaSavedAt); savedAt != "" {
				if t, err := time.Parse(time.RFC3339, savedAt); err == nil {
					opts.Generated = t
				}
			}

			return writeExport(g, opts, outputFile, format)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "输出文件路径 (默认输出到 stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "输出格式 (plantuml/mermaid/markdown/json)")
	cmd.Flags().StringVar(&title, "title", "", "图标题")
	cmd.Flags().BoolVar(&noPackages, "no-packages", false, "不按包分组")
	cmd.Flags().BoolVar(&noWarnings, "no-warnings", false, "不输出警告")

	return cmd
}
