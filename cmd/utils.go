package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zheng/connviz/internal/analysis"
	"github.com/zheng/connviz/internal/config"
	"github.com/zheng/connviz/internal/display"
	"github.com/zheng/connviz/internal/export"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/storage"
)

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// configFlags are the analysis options shared by analyze and watch
type configFlags struct {
	path           string
	groupBy        string
	tieBreak       string
	noPlaceholders bool
	workers        int
	exclude        []string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "config", "c", "", "YAML 配置文件路径")
	cmd.Flags().StringVar(&f.groupBy, "group-by", "", "节点粒度 (class/package/custom-label)")
	cmd.Flags().StringVar(&f.tieBreak, "tie-break", "", "多个规则匹配时的取舍 (specificity/first/merge)")
	cmd.Flags().BoolVar(&f.noPlaceholders, "no-placeholders", false, "不为未匹配的引用生成外部目标节点")
	cmd.Flags().IntVarP(&f.workers, "workers", "j", 0, "并发数 (0=CPU 核数)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "排除路径 (gitignore 语法，可重复)")
}

// load reads the config file, applies flag overrides and validates the result
func (f *configFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if f.path != "" {
		var err error
		if cfg, err = config.LoadFile(f.path); err != nil {
			return nil, err
		}
	}
	if f.groupBy != "" {
		cfg.GroupBy = config.GroupBy(f.groupBy)
	}
	if f.tieBreak != "" {
		cfg.TieBreak = config.TieBreak(f.tieBreak)
	}
	if cmd.Flags().Changed("no-placeholders") {
		cfg.IncludeUnresolvedPlaceholders = !f.noPlaceholders
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	cfg.Exclude = append(cfg.Exclude, f.exclude...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// saveResult replaces the stored graph with res
func saveResult(dbPath string, res *analysis.Result) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("打开数据库失败: %w", err)
	}
	defer db.Close()
	if err := db.SaveGraph(res.Graph, res.Warnings); err != nil {
		return fmt.Errorf("写入数据库失败: %w", err)
	}
	return nil
}

// printSummary reports the statistics of one analysis run
func printSummary(res *analysis.Result) {
	st := res.Graph.Stats()
	fmt.Printf("扫描 %s 个文件, %s 个类, 其中 %s 个包含连接标记 (耗时 %v)\n",
		humanize.Comma(int64(res.Stats.Artifacts)),
		humanize.Comma(int64(res.Stats.Classes)),
		humanize.Comma(int64(res.Stats.Classified)),
		res.Stats.Elapsed.Round(time.Millisecond))
	kinds := make([]string, 0, len(graph.EdgeKinds))
	for _, k := range graph.EdgeKinds {
		kinds = append(kinds, fmt.Sprintf("%s: %d", k, st.EdgesByKind[k]))
	}
	fmt.Printf("组件: %d, 外部目标: %d, 连接: %d (%s)\n",
		st.Nodes-st.Placeholders, st.Placeholders, st.Edges, strings.Join(kinds, ", "))
	if len(res.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "警告: %d 个 (使用 connviz warnings 查看)\n", len(res.Warnings))
	}
}

// writeExport renders g into path, choosing the format from the flag or the extension
func writeExport(g *graph.Graph, opts export.ExportOptions, path, format string) error {
	f := export.FormatFromPath(path)
	if format != "" {
		var err error
		if f, err = export.ParseFormat(format); err != nil {
			return err
		}
	}

	w := os.Stdout
	if path != "" && path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %w", err)
		}
		defer file.Close()
		w = file
	}
	return export.NewExporter(g, opts).Export(w, f)
}

// resolveNode finds the stored node for a name: an exact identity, or the
// select-th pattern match (interactive choice when ambiguous)
func resolveNode(db *storage.DB, name string, selectN int) (*graph.Node, error) {
	if n, err := db.GetNodeByID(name); err == nil {
		return n, nil
	}
	nodes, err := db.FindNodesByPattern(name)
	if err != nil {
		return nil, err
	}
	switch {
	case len(nodes) == 0:
		return nil, fmt.Errorf("未找到组件: %s", name)
	case len(nodes) == 1:
		return nodes[0], nil
	case selectN >= 1 && selectN <= len(nodes):
		return nodes[selectN-1], nil
	}

	fmt.Println("找到多个匹配的组件，请选择:")
	for i, n := range nodes {
		fmt.Printf("  [%d] %s  %s\n", i+1, n.ID, display.Roles(n.Roles))
	}
	fmt.Print("\n请输入序号 [1-" + fmt.Sprint(len(nodes)) + "]: ")

	var choice int
	if _, err := fmt.Scanf("%d", &choice); err != nil || choice < 1 || choice > len(nodes) {
		return nil, fmt.Errorf("无效的选择")
	}
	return nodes[choice-1], nil
}

func openDB() (*storage.DB, error) {
	db, err := storage.Open(DbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	return db, nil
}
