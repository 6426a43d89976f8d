package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zheng/pyflow/internal/display"
	"github.com/zheng/pyflow/internal/export"
	"github.com/zheng/pyflow/internal/flow"
	"github.com/zheng/pyflow/internal/storage"
	"github.com/zheng/pyflow/internal/telemetry"
)

func renderCmd() *cobra.Command {
	var output string
	var format string
	var depth int
	var stops []string
	var roots []string
	var save bool
	var preload bool

	cmd := &cobra.Command{
		Use:   "render <target>...",
		Short: "为 Python 函数生成控制流图",
		Long: `解析入口函数所在的源文件，构建控制流图，并按深度内联被调用函数的函数体。

入口函数写法：
  path/to/file.py:func        文件中的顶层函数
  path/to/file.py:Class.method 类中的方法
  package.module:func         按模块名查找（在 --root 下搜索）

示例：
  pyflow render app.py:main                 # 生成 app.main.pdf
  pyflow render app.py:main -o out/main.svg # 按扩展名推断格式
  pyflow render app.py:main -f mermaid -o - # 输出到 stdout
  pyflow render app.py:main --depth 3 --stop log,print
  pyflow render a.py:run b.py:run -o out/   # 生成 out/a.run.pdf 和 out/b.run.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("depth") {
				depth = cfg.Flow.Depth
			}
			if depth < 0 {
				return fmt.Errorf("深度不能为负数: %d", depth)
			}

			var f export.Format
			var err error
			switch {
			case cmd.Flags().Changed("format"):
				f, err = export.ParseFormat(format)
			case output != "" && output != "-" && len(args) == 1:
				f, err = export.FormatFromPath(output)
			default:
				f, err = export.ParseFormat(cfg.Output.Format)
			}
			if err != nil {
				return err
			}
			if output == "-" && (len(args) > 1 || f.IsImage()) {
				return fmt.Errorf("只有单个入口的文本格式可以输出到 stdout")
			}

			reqs := make([]flow.Request, len(args))
			for i, target := range args {
				reqs[i] = flow.Request{
					Target:        target,
					Roots:         searchPaths(roots),
					Depth:         depth,
					StopFunctions: stopList(stops),
					Preload:       preload,
				}
			}

			metrics := telemetry.NewMetrics(nil)
			results, err := newPipeline(metrics).BuildAll(cmd.Context(), reqs)
			if err != nil {
				return fmt.Errorf("构建控制流图失败: %w", err)
			}

			exporter := export.NewExporter(logger)
			opts := exportOptions(f)
			if output == "-" {
				opts.Title = results[0].Target
				return exporter.Export(os.Stdout, results[0].Graph, opts)
			}

			var db *storage.DB
			if save {
				if db, err = openDB(); err != nil {
					return err
				}
				defer db.Close()
			}

			for _, res := range results {
				path := output
				if path == "" || len(results) > 1 {
					dir := cfg.Output.Dir
					if output != "" {
						dir = output
					}
					path = outputFile(dir, res.Entry, f)
				}
				opts.Title = res.Target
				if err := exporter.RenderFile(cmd.Context(), res.Graph, path, opts); err != nil {
					return err
				}

				st := res.Graph.Stats
				fmt.Printf("已生成 %s: %d 节点, %d 边, 展开 %d 次 (耗时 %v)\n",
					path, st.Nodes, st.Edges, st.Expansions, res.Duration.Round(time.Millisecond))
				if len(res.Graph.Diagnostics) > 0 {
					fmt.Printf("诊断 (%d):\n", len(res.Graph.Diagnostics))
					fmt.Print(display.FormatDiagnostics(res.Graph.Diagnostics))
				}

				if db != nil {
					id, err := db.SaveRun(res.Graph, storage.RunMeta{
						Target:      res.Target,
						Depth:       depth,
						Fingerprint: res.Fingerprint,
					})
					if err != nil {
						return fmt.Errorf("保存运行记录失败: %w", err)
					}
					fmt.Printf("运行记录: %s\n", id)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件路径，多个入口时为输出目录，- 表示 stdout")
	cmd.Flags().StringVarP(&format, "format", "f", "", "输出格式 (pdf/svg/png/dot/mermaid/json/outline)")
	cmd.Flags().IntVar(&depth, "depth", 2, "调用展开深度，0 表示不展开")
	cmd.Flags().StringSliceVar(&stops, "stop", nil, "不展开的函数名，逗号分隔")
	cmd.Flags().StringSliceVar(&roots, "root", nil, "模块搜索路径")
	cmd.Flags().BoolVar(&save, "save", false, "保存到数据库，供 trace/view/export 使用")
	cmd.Flags().BoolVar(&preload, "preload", false, "先并发解析搜索路径下的全部 .py 文件")

	return cmd
}
