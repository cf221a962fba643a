package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/zheng/connviz/internal/classfile"
	"github.com/zheng/connviz/internal/config"
	"github.com/zheng/connviz/internal/marker"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func inspectCmd() *cobra.Command {
	var class string
	var markersOnly bool
	var format string
	var exclude []string

	cmd := &cobra.Command{
		Use:   "inspect <path...>",
		Short: "查看 class 文件解析结果与识别到的标记",
		Long: `解析 class 文件（或目录、jar/war），输出类描述符以及分类器识别到的标记，
用于排查某个类为什么没有出现在连接图中。

示例：
  connviz inspect target/classes --class OrderController
  connviz inspect app.jar --markers`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := classfile.Discover(args, exclude)
			if err != nil {
				return err
			}
			defer set.Close()

			index := marker.MapIndex{}
			var classes []*classfile.ClassDescriptor
			for cd, err := range classfile.Load(set.Artifacts) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "跳过: %v\n", err)
					continue
				}
				if _, dup := index[cd.Name]; !dup {
					index[cd.Name] = cd
				}
				if class == "" || strings.Contains(cd.Name, class) {
					classes = append(classes, cd)
				}
			}
			sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

			classifier := marker.New(marker.DefaultRules(), marker.OptionsFrom(config.Default(), index))
			type inspected struct {
				Class   *classfile.ClassDescriptor `json:"class,omitempty"`
				Name    string                     `json:"name"`
				Markers []marker.Marker            `json:"markers"`
			}
			var out []inspected
			for _, cd := range classes {
				var ms []marker.Marker
				if marker.Included(cd) {
					ms = classifier.Classify(cd)
				}
				if markersOnly && len(ms) == 0 {
					continue
				}
				item := inspected{Name: cd.Name, Markers: ms}
				if !markersOnly {
					item.Class = cd
				}
				out = append(out, item)
			}

			if format == "json" {
				return outputJSON(out)
			}
			for _, item := range out {
				fmt.Printf("== %s\n", item.Name)
				if item.Class != nil {
					dumper.Dump(item.Class)
				}
				for _, m := range item.Markers {
					fmt.Printf("  [%s] %s %s\n", m.Kind, m.Rule, m.Element)
					keys := make([]string, 0, len(m.Attrs))
					for k := range m.Attrs {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					for _, k := range keys {
						fmt.Printf("      %s = %s\n", k, m.Attrs[k])
					}
				}
			}
			fmt.Printf("\n共 %d 个类\n", len(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&class, "class", "", "只查看名称包含该字符串的类")
	cmd.Flags().BoolVar(&markersOnly, "markers", false, "只输出识别到标记的类，不输出描述符")
	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "排除路径 (gitignore 语法)")
	return cmd
}
