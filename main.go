package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/connviz/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "connviz",
		Short: "connviz - Spring 服务连接图分析工具",
		Long: `connviz 静态分析编译后的 class 文件与 jar/war 包，
识别 REST 接口与客户端、消息收发、仓库与实体等连接标记，
构建服务组件之间的连接图，并导出为 PlantUML、Mermaid、Markdown 或 JSON。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.RegisterCommands(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
