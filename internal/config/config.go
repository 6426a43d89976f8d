package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zheng/pyflow/internal/export"
	"github.com/zheng/pyflow/internal/graph"
)

type Config struct {
	Project struct {
		Root        string   `yaml:"root"`
		SearchPaths []string `yaml:"search_paths"` // 额外的模块搜索路径
	} `yaml:"project"`
	Flow struct {
		Depth         int      `yaml:"depth"`          // 调用展开深度
		StopFunctions []string `yaml:"stop_functions"` // 不展开的函数
		Direction     string   `yaml:"direction"`
	} `yaml:"flow"`
	Output struct {
		Format    string `yaml:"format"`
		Dir       string `yaml:"dir"`
		DotBinary string `yaml:"dot_binary"`
	} `yaml:"output"`
	Storage struct {
		DB string `yaml:"db"`
	} `yaml:"storage"`
	Log LogConfig `yaml:"log"`
	Web struct {
		Port int `yaml:"port"`
	} `yaml:"web"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // text / json
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Flow.Depth = graph.DefaultDepth
	cfg.Flow.Direction = "TB"
	cfg.Output.Format = string(export.FormatPDF)
	cfg.Output.Dir = "."
	cfg.Output.DotBinary = "dot"
	cfg.Storage.DB = ".pyflow.db"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Web.Port = 9998
	return &cfg
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error. PYFLOW_* environment variables, including ones from a
// .env file, override the file.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if root := os.Getenv("PYFLOW_ROOT"); root != "" {
		c.Project.Root = root
	}
	if depth := os.Getenv("PYFLOW_DEPTH"); depth != "" {
		d, err := strconv.Atoi(depth)
		if err != nil {
			return fmt.Errorf("PYFLOW_DEPTH: %w", err)
		}
		c.Flow.Depth = d
	}
	if format := os.Getenv("PYFLOW_FORMAT"); format != "" {
		c.Output.Format = format
	}
	if db := os.Getenv("PYFLOW_DB"); db != "" {
		c.Storage.DB = db
	}
	if level := os.Getenv("PYFLOW_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	return nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if c.Flow.Depth < 0 {
		return fmt.Errorf("flow.depth must not be negative, got %d", c.Flow.Depth)
	}
	if _, err := export.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	switch strings.ToUpper(c.Flow.Direction) {
	case "", "TB", "TD", "BT", "LR", "RL":
	default:
		return fmt.Errorf("flow.direction: unknown direction %q", c.Flow.Direction)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	return nil
}

// Logger builds the slog logger described by c, writing to w.
func (c LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
