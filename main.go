package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/pyflow/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pyflow",
		Short: "Python 控制流图生成工具",
		Long: `pyflow 为 Python 函数生成控制流图，并按深度把被调用函数的函数体内联进来，
帮助快速理解一段陌生代码的执行路径。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.RegisterCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
