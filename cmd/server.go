package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zheng/pyflow/internal/display"
	"github.com/zheng/pyflow/internal/export"
	"github.com/zheng/pyflow/internal/flow"
	"github.com/zheng/pyflow/internal/mcp"
	"github.com/zheng/pyflow/internal/telemetry"
	"github.com/zheng/pyflow/internal/watcher"
	"github.com/zheng/pyflow/internal/web"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "启动 MCP (Model Context Protocol) 服务器",
		Long: `启动 MCP 服务器，允许 AI 助手（如 Cursor、Claude）直接生成和查询控制流图。

MCP 工具包括：
  - flowgraph: 为入口函数生成控制流图 (mermaid/dot/json/outline)
  - runs: 列出已保存的运行记录
  - trace: 查询节点的前驱和后继`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			server := mcp.NewServer(db, newPipeline(telemetry.NewMetrics(nil)), mcp.Defaults{
				Depth:         cfg.Flow.Depth,
				Roots:         searchPaths(nil),
				StopFunctions: cfg.Flow.StopFunctions,
			}, logger)
			return server.Run(cmd.Context())
		},
	}

	return cmd
}

func watchCmd() *cobra.Command {
	var debounceMs int
	var dir string
	var output string
	var format string
	var depth int

	cmd := &cobra.Command{
		Use:   "watch <target>...",
		Short: "监控 Python 文件变更并自动重新生成控制流图",
		Long: `启动 watch 模式，监控目录中的 .py 文件变更。
当入口函数用到的源文件发生变化时，重新生成对应的控制流图。

特性：
  - 自动递归监控所有目录
  - 防抖处理，避免频繁触发生成
  - 源码内容未变时跳过生成
  - 忽略隐藏目录、__pycache__、venv、node_modules 等

示例：
  pyflow watch app.py:main                 # 监控当前目录
  pyflow watch app.py:main -f svg -o out/  # 输出 SVG 到 out/
  pyflow watch app.py:main --debounce 1000 # 设置 1 秒防抖延迟`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("depth") {
				depth = cfg.Flow.Depth
			}
			if format == "" {
				format = cfg.Output.Format
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.Output.Dir
			}

			reqs := make([]flow.Request, len(args))
			for i, target := range args {
				reqs[i] = flow.Request{
					Target:        target,
					Roots:         searchPaths(nil),
					Depth:         depth,
					StopFunctions: stopList(nil),
				}
			}
			session := newPipeline(telemetry.NewMetrics(nil)).NewSession(reqs)
			exporter := export.NewExporter(logger)

			render := func(ctx context.Context, changed []string) (watcher.RenderResult, error) {
				var result watcher.RenderResult
				rebuilt, skipped, err := session.Refresh(ctx, changed)
				if err != nil {
					return result, err
				}
				for _, res := range rebuilt {
					path := outputFile(output, res.Entry, f)
					opts := exportOptions(f)
					opts.Title = res.Target
					if err := exporter.RenderFile(ctx, res.Graph, path, opts); err != nil {
						return result, err
					}
					result.Nodes += res.Graph.Stats.Nodes
					result.Edges += res.Graph.Stats.Edges
					result.Outputs = append(result.Outputs, path)
					if len(res.Graph.Diagnostics) > 0 {
						fmt.Print(display.FormatDiagnostics(res.Graph.Diagnostics))
					}
				}
				result.Skipped = len(rebuilt) == 0 && skipped > 0
				return result, nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// First run initial render
			fmt.Println("执行初始生成...")
			initial, err := render(ctx, nil)
			if err != nil {
				return fmt.Errorf("初始生成失败: %w", err)
			}
			fmt.Printf("初始生成完成: %d 节点, %d 边\n", initial.Nodes, initial.Edges)
			for _, p := range initial.Outputs {
				fmt.Printf("  - %s\n", p)
			}

			// Create watcher
			fmt.Printf("\n开始监控目录: %s\n", dir)
			fmt.Printf("防抖延迟: %dms\n", debounceMs)
			fmt.Println("\n按 Ctrl+C 停止...")
			fmt.Println()

			w, err := watcher.New(
				dir,
				render,
				watcher.WithDebounceDelay(time.Duration(debounceMs)*time.Millisecond),
				watcher.WithOnRenderStart(func(changed []string) {
					fmt.Printf("[%s] 检测到 %d 个文件变更，开始生成...\n", time.Now().Format("15:04:05"), len(changed))
				}),
				watcher.WithOnRenderDone(func(result watcher.RenderResult, duration time.Duration) {
					if result.Skipped {
						fmt.Printf("[%s] 源码未变，跳过生成\n", time.Now().Format("15:04:05"))
						return
					}
					fmt.Printf("[%s] 生成完成: %d 个文件, %d 节点, %d 边 (耗时 %v)\n",
						time.Now().Format("15:04:05"), len(result.Outputs), result.Nodes, result.Edges, duration.Round(time.Millisecond))
				}),
				watcher.WithOnError(func(err error) {
					fmt.Fprintf(os.Stderr, "[%s] 错误: %v\n", time.Now().Format("15:04:05"), err)
				}),
			)
			if err != nil {
				return fmt.Errorf("创建监控器失败: %w", err)
			}

			w.Start(ctx)
			defer w.Stop()

			<-ctx.Done()
			fmt.Println("\n停止监控...")
			return nil
		},
	}

	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "防抖延迟（毫秒）")
	cmd.Flags().StringVar(&dir, "dir", ".", "监控的目录")
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出目录")
	cmd.Flags().StringVarP(&format, "format", "f", "", "输出格式")
	cmd.Flags().IntVar(&depth, "depth", 2, "调用展开深度")

	return cmd
}

func viewCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "view",
		Short: "启动 Web UI 查看已保存的控制流图",
		Long: `启动一个本地 Web 服务器，浏览通过 render --save 保存的控制流图。

特性：
  - 运行记录列表
  - Mermaid 渲染控制流图
  - 节点前驱/后继查询
  - /metrics 暴露 Prometheus 指标

示例：
  pyflow view              # 使用默认端口 9998
  pyflow view -p 3000      # 指定端口
  pyflow view -d my.db     # 指定数据库`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = cfg.Web.Port
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := web.NewServer(db, port, nil, logger)
			return server.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 9998, "服务器端口")

	return cmd
}
