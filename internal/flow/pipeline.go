// Package flow wires the parser, resolver and builder into one build per
// entry-point target.
package flow

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/zheng/pyflow/internal/graph"
	"github.com/zheng/pyflow/internal/namespace"
	"github.com/zheng/pyflow/internal/syntax"
	"github.com/zheng/pyflow/internal/telemetry"
)

// Request names one graph to build.
type Request struct {
	Target        string   // file.py:qualname 或 module:qualname
	Roots         []string // 模块搜索路径
	Depth         int
	StopFunctions []string
	Preload       bool // 先并发解析搜索路径下的全部 .py 文件
}

// Result is a built graph and what it was built from.
type Result struct {
	Target      string
	Entry       string // 入口函数的限定名，含模块名，如 app.main
	Graph       *graph.FlowGraph
	Fingerprint string
	Files       []string // 构建过程中加载的源文件
	Duration    time.Duration
}

// Pipeline builds flow graphs. It holds no per-build state and is safe for
// concurrent use.
type Pipeline struct {
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	maxFileSize int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records every build on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithMaxFileSize caps the size of parsed sources.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Pipeline) { p.maxFileSize = bytes }
}

// New creates a Pipeline.
func New(logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build parses what the target needs, resolves its entry callable and
// builds its flow graph.
func (p *Pipeline) Build(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := p.build(ctx, req)
	elapsed := time.Since(start)
	if p.metrics != nil {
		if err != nil {
			p.metrics.RecordFailure(elapsed)
		} else {
			p.metrics.RecordBuild(res.Graph.Stats, elapsed)
		}
	}
	if err != nil {
		return nil, err
	}
	res.Duration = elapsed
	p.logger.Info("flow graph built",
		slog.String("target", req.Target),
		slog.Int("nodes", res.Graph.Stats.Nodes),
		slog.Int("edges", res.Graph.Stats.Edges),
		slog.Int("expansions", res.Graph.Stats.Expansions),
		slog.Int("unresolved", res.Graph.Stats.Unresolved),
		slog.Duration("duration", elapsed))
	return res, nil
}

func (p *Pipeline) build(ctx context.Context, req Request) (*Result, error) {
	parserOpts := []syntax.ParserOption{syntax.WithLogger(p.logger)}
	if p.maxFileSize > 0 {
		parserOpts = append(parserOpts, syntax.WithMaxFileSize(p.maxFileSize))
	}
	prog := namespace.NewProgram(Roots(req.Target, req.Roots),
		namespace.WithLogger(p.logger),
		namespace.WithParser(syntax.NewParser(parserOpts...)))

	if req.Preload {
		if err := prog.Preload(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", req.Target, err)
		}
	}
	c, err := prog.FindCallable(ctx, req.Target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Target, err)
	}
	builder := graph.NewBuilder(namespace.NewResolver(prog), graph.Options{
		Depth:         req.Depth,
		StopFunctions: req.StopFunctions,
		Logger:        p.logger,
	})
	g, err := builder.Build(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Target, err)
	}
	for _, d := range g.Diagnostics {
		if d.Kind == graph.DiagUnresolved {
			p.logger.Warn("call not expanded",
				slog.String("call", callText(g, d.Node)),
				slog.String("reason", d.Message),
				slog.String("node", string(d.Node)),
				slog.Int("line", d.Line))
		}
	}
	return &Result{
		Target:      req.Target,
		Entry:       c.Qualname(),
		Graph:       g,
		Fingerprint: prog.Fingerprint(),
		Files:       prog.Files(),
	}, nil
}

// callText is the rendered call of a call node, without its kind line.
func callText(g *graph.FlowGraph, id graph.NodeID) string {
	n, ok := g.Node(id)
	if !ok {
		return ""
	}
	_, text, found := strings.Cut(n.Label, "\n")
	if !found {
		return n.Label
	}
	return text
}

// BuildAll builds every request concurrently. Results keep the order of
// reqs; the first failure cancels the rest.
func (p *Pipeline) BuildAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := p.Build(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Roots returns the module search roots for target: the directory of an
// entry file comes first, then extra. A module target with no extra roots
// searches the working directory.
func Roots(target string, extra []string) []string {
	var roots []string
	if where, ok := fileOf(target); ok {
		roots = append(roots, filepath.Dir(where))
	}
	roots = append(roots, extra...)
	if len(roots) == 0 {
		roots = []string{"."}
	}
	return roots
}

func fileOf(target string) (string, bool) {
	i := strings.LastIndex(target, ":")
	if i <= 0 {
		return "", false
	}
	where := target[:i]
	if strings.HasSuffix(where, ".py") || strings.ContainsAny(where, `/\`) {
		return where, true
	}
	return "", false
}

// Fingerprint hashes the current contents of files the same way a
// Program fingerprints what it loaded, so an unchanged set of sources
// yields Result.Fingerprint again.
func Fingerprint(files []string) (string, error) {
	paths := append([]string(nil), files...)
	sort.Strings(paths)
	h := xxh3.New()
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s=%016x\n", path, xxh3.Hash(src))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Touches reports whether any of changed is one of files.
func (r *Result) Touches(changed []string) bool {
	set := make(map[string]bool, len(r.Files))
	for _, f := range r.Files {
		set[f] = true
	}
	for _, c := range changed {
		if abs, err := filepath.Abs(c); err == nil && set[abs] {
			return true
		}
	}
	return false
}
