package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/pyflow/internal/export"
)

func exportCmd() *cobra.Command {
	var outputFile string
	var format string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "导出已保存的控制流图",
		Long: `从数据库读取一次运行记录并重新输出，无需重新解析源码。
运行记录 ID 可以只写前缀，也可以写入口函数，取该入口最近的一次记录。

示例：
  pyflow export 3f2a                  # DOT 输出到 stdout
  pyflow export 3f2a -f mermaid
  pyflow export app.py:main -f json   # 该入口最近的一次记录
  pyflow export 3f2a -o flow.svg      # 按扩展名推断格式，图片格式需要 Graphviz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := findRun(db, args[0])
			if err != nil {
				return err
			}
			g, err := db.LoadGraph(run.ID)
			if err != nil {
				return fmt.Errorf("加载控制流图失败: %w", err)
			}

			var f export.Format
			if format != "" {
				if f, err = export.ParseFormat(format); err != nil {
					return err
				}
			}
			exporter := export.NewExporter(logger)
			opts := exportOptions(f)
			opts.Title = run.Target

			if outputFile == "" || outputFile == "-" {
				if opts.Format == "" {
					opts.Format = export.FormatDOT
				}
				return exporter.Export(os.Stdout, g, opts)
			}
			if err := exporter.RenderFile(cmd.Context(), g, outputFile, opts); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "已导出 %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "输出文件路径 (默认输出到 stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "输出格式 (dot/mermaid/json/outline/pdf/svg/png)")

	return cmd
}
