package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/pyflow/internal/config"
)

var (
	DbPath     string
	ConfigPath string
	LogLevel   string

	cfg    = config.Default()
	logger = slog.Default()
)

// RegisterCommands adds the persistent flags and all subcommands to the
// root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVarP(&DbPath, "db", "d", ".pyflow.db", "数据库文件路径")
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "pyflow.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	rootCmd.PersistentPreRunE = setup

	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(traceCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(mcpCmd())
}

// setup loads the configuration and installs the logger. Explicit flags
// win over the file.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(ConfigPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if cmd.Flags().Changed("db") || loaded.Storage.DB == "" {
		loaded.Storage.DB = DbPath
	}
	if LogLevel != "" {
		loaded.Log.Level = LogLevel
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	cfg = loaded

	l, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(logger)
	return nil
}
