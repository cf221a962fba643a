package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zheng/connviz/internal/analysis"
	"github.com/zheng/connviz/internal/mcp"
	"github.com/zheng/connviz/internal/watcher"
	"github.com/zheng/connviz/internal/web"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "启动 MCP (Model Context Protocol) 服务器",
		Long: `启动 MCP 服务器，允许 AI 助手直接查询服务连接图。

MCP 工具包括：
  - search: 搜索组件
  - connections: 查询上游与下游连接
  - impact: 分析组件变更的影响范围
  - edges: 列出连接
  - export: 导出图表
  - warnings: 列出分析警告
  - stats: 统计信息`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := mcp.NewServer(db)
			return server.Run(ctx)
		},
	}

	return cmd
}

func watchCmd() *cobra.Command {
	var flags configFlags
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "watch [path...]",
		Short: "监控编译产物变更并自动更新连接图",
		Long: `启动 watch 模式，监控 class 文件与 jar/war 包的变更。
当检测到变更时，自动重新分析并更新连接图数据库。

特性：
  - 自动递归监控所有目录
  - 防抖处理，避免一次构建触发多次分析
  - 忽略隐藏目录与 --exclude 匹配的路径

示例：
  connviz watch target/classes
  connviz watch build/libs --debounce 1000`,
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

			fmt.Println("执行初始分析...")
			res, err := analysis.RunPaths(cmd.Context(), roots, cfg)
			if err != nil {
				return fmt.Errorf("初始分析失败: %w", err)
			}
			if err := saveResult(DbPath, res); err != nil {
				return err
			}
			printSummary(res)

			fmt.Printf("\n开始监控: %v\n", roots)
			fmt.Printf("数据库路径: %s\n", DbPath)
			fmt.Printf("防抖延迟: %dms\n", debounceMs)
			fmt.Println("\n按 Ctrl+C 停止...")
			fmt.Println()

			w, err := watcher.New(
				roots,
				cfg,
				watcher.WithDatabase(DbPath),
				watcher.WithDebounceDelay(time.Duration(debounceMs)*time.Millisecond),
				watcher.WithOnAnalysisStart(func(changed []string) {
					fmt.Printf("[%s] 检测到 %d 处变更，开始分析...\n", time.Now().Format("15:04:05"), len(changed))
				}),
				watcher.WithOnAnalysisDone(func(res *analysis.Result) {
					st := res.Graph.Stats()
					fmt.Printf("[%s] 分析完成: %d 节点, %d 边, %d 警告 (耗时 %v)\n",
						time.Now().Format("15:04:05"), st.Nodes, st.Edges, len(res.Warnings),
						res.Stats.Elapsed.Round(time.Millisecond))
				}),
				watcher.WithOnError(func(err error) {
					fmt.Fprintf(os.Stderr, "[%s] 错误: %v\n", time.Now().Format("15:04:05"), err)
				}),
			)
			if err != nil {
				return fmt.Errorf("创建监控器失败: %w", err)
			}

			w.Start()
			defer w.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			fmt.Println("\n停止监控...")
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "防抖延迟（毫秒）")

	return cmd
}

func viewCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "view",
		Short: "启动 Web 服务浏览连接图",
		Long: `启动一个本地 Web 服务器，首页以 Mermaid 渲染完整连接图，
并提供 JSON 接口：

  /api/graph            完整连接图
  /api/nodes?role=      组件列表
  /api/node/{id}        组件详情与直接连接
  /api/chain/{id}       上下游连接树 (?depth=)
  /api/search?q=        搜索组件
  /api/export?format=   导出 plantuml/mermaid/markdown/json
  /api/stats            统计信息

示例：
  connviz view              # 使用默认端口 9998
  connviz view -p 3000      # 指定端口`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			server := web.NewServer(db, port)
			return server.Run()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 9998, "服务器端口")

	return cmd
}
