package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/pyflow/internal/display"
	"github.com/zheng/pyflow/internal/reach"
)

func runsCmd() *cobra.Command {
	var jsonOutput bool
	var limit int
	var remove string
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "列出已保存的运行记录",
		Long: `列出通过 render --save 保存的控制流图，最新的在前。

示例：
  pyflow runs
  pyflow runs --limit 5 --json
  pyflow runs --delete 3f2a
  pyflow runs --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if clearAll {
				if err := db.Clear(); err != nil {
					return fmt.Errorf("清空数据库失败: %w", err)
				}
				fmt.Println("已清空所有运行记录")
				return nil
			}

			if remove != "" {
				run, err := findRun(db, remove)
				if err != nil {
					return err
				}
				if err := db.DeleteRun(run.ID); err != nil {
					return fmt.Errorf("删除运行记录失败: %w", err)
				}
				fmt.Printf("已删除运行记录 %s (%s)\n", run.ID, run.Target)
				return nil
			}

			runs, err := db.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("查询失败: %w", err)
			}
			if jsonOutput {
				return outputJSON(runs)
			}
			fmt.Print(display.FormatRuns(runs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "输出 JSON 格式")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "最多显示的记录数量，0 表示全部")
	cmd.Flags().StringVar(&remove, "delete", "", "删除指定的运行记录")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "删除所有运行记录")

	return cmd
}

func traceCmd() *cobra.Command {
	var upDepth int
	var downDepth int
	var jsonOutput bool
	var markdown bool

	cmd := &cobra.Command{
		Use:   "trace <run-id|target> <node>",
		Short: "查询节点的前驱和后继",
		Long: `在已保存的控制流图中，从指定节点出发沿边查找可达的节点。
节点可以是节点 ID（如 "|12|40"），也可以是标签中的片段（如 "Return"）。

示例：
  pyflow trace 3f2a "|12"           # 所有前驱和后继
  pyflow trace 3f2a Return --up 1    # 只看直接前驱，不看后继
  pyflow trace 3f2a "Call load" --down 0 --up -1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if cmd.Flags().Changed("up") && !cmd.Flags().Changed("down") {
				downDepth = -1
			}
			if cmd.Flags().Changed("down") && !cmd.Flags().Changed("up") {
				upDepth = -1
			}

			run, err := findRun(db, args[0])
			if err != nil {
				return err
			}
			report, err := reach.NewAnalyzer(db).Analyze(run.ID, args[1], upDepth, downDepth)
			if err != nil {
				return err
			}

			switch {
			case jsonOutput:
				return outputJSON(report)
			case markdown:
				fmt.Fprint(os.Stdout, report.FormatMarkdown())
			default:
				fmt.Print(display.FormatReport(report))
				fmt.Printf("\n%s\n", report.Summary())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&upDepth, "up", 0, "前驱追溯深度，0 表示无限，-1 表示跳过")
	cmd.Flags().IntVar(&downDepth, "down", 0, "后继追溯深度，0 表示无限，-1 表示跳过")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "输出 JSON 格式")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "输出 Markdown 格式")

	return cmd
}
