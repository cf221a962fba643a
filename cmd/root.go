package cmd

import (
	"github.com/spf13/cobra"
)

var (
	DbPath string
)

// RegisterCommands adds all subcommands to the root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVarP(&DbPath, "db", "d", ".connviz.db", "数据库文件路径")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(edgesCmd())
	rootCmd.AddCommand(upstreamCmd())
	rootCmd.AddCommand(downstreamCmd())
	rootCmd.AddCommand(impactCmd())
	rootCmd.AddCommand(warningsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(viewCmd())
}
