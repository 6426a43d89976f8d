package namespace

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/zheng/pyflow/internal/syntax"
)

// Program is the static, project-wide symbol table. It locates modules
// under its search roots, parses each one at most once and serves the
// parsed trees to the resolver.
//
// A Program is safe for concurrent use, so several builders may share one.
type Program struct {
	roots  []string
	parser *syntax.Parser
	logger *slog.Logger

	mu      sync.Mutex
	modules map[string]*syntax.Module
	failed  map[string]error
	hashes  map[string]uint64 // file path -> xxh3 of its source
}

// Option configures a Program.
type Option func(*Program)

// WithParser sets the parser used for every module.
func WithParser(p *syntax.Parser) Option {
	return func(prog *Program) {
		if p != nil {
			prog.parser = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(prog *Program) {
		if logger != nil {
			prog.logger = logger
		}
	}
}

// NewProgram creates a Program searching the given roots in order.
func NewProgram(roots []string, opts ...Option) *Program {
	p := &Program{
		logger:  slog.Default(),
		modules: make(map[string]*syntax.Module),
		failed:  make(map[string]error),
		hashes:  make(map[string]uint64),
	}
	for _, root := range roots {
		if abs, err := filepath.Abs(root); err == nil {
			p.roots = append(p.roots, abs)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.parser == nil {
		p.parser = syntax.NewParser(syntax.WithLogger(p.logger))
	}
	return p
}

// locate returns the source file of a dotted module name.
func (p *Program) locate(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	for _, root := range p.roots {
		candidates := []string{
			filepath.Join(root, rel+".py"),
			filepath.Join(root, rel, "__init__.py"),
		}
		for _, path := range candidates {
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

// HasModule reports whether the module's source exists under a root.
func (p *Program) HasModule(name string) bool {
	p.mu.Lock()
	_, loaded := p.modules[name]
	p.mu.Unlock()
	if loaded {
		return true
	}
	_, ok := p.locate(name)
	return ok
}

// ImportModule returns the parsed module with the given canonical name.
// Failures are cached like successes.
func (p *Program) ImportModule(ctx context.Context, name string) (*syntax.Module, error) {
	p.mu.Lock()
	if mod, ok := p.modules[name]; ok {
		p.mu.Unlock()
		return mod, nil
	}
	if err, ok := p.failed[name]; ok {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	path, ok := p.locate(name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrModuleNotFound, name)
		p.rememberFailure(name, err)
		return nil, err
	}
	mod, err := p.load(ctx, path, name)
	if err != nil && ctx.Err() == nil {
		p.rememberFailure(name, err)
	}
	return mod, err
}

// LoadFile parses a file given by path. Its module name is the path
// relative to the first root that contains it, or the bare file name.
func (p *Program) LoadFile(ctx context.Context, path string) (*syntax.Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}
	name := p.moduleNameFor(abs)

	p.mu.Lock()
	if mod, ok := p.modules[name]; ok && mod.Path == abs {
		p.mu.Unlock()
		return mod, nil
	}
	p.mu.Unlock()

	return p.load(ctx, abs, name)
}

func (p *Program) moduleNameFor(abs string) string {
	for _, root := range p.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return moduleNameFromRel(rel)
	}
	return strings.TrimSuffix(filepath.Base(abs), ".py")
}

func moduleNameFromRel(rel string) string {
	rel = filepath.ToSlash(strings.TrimSuffix(rel, ".py"))
	rel = strings.TrimSuffix(rel, "/__init__")
	return strings.ReplaceAll(rel, "/", ".")
}

func (p *Program) load(ctx context.Context, path, name string) (*syntax.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	mod, err := p.parser.Parse(ctx, src, path, name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another goroutine may have won the race; keep its tree so slots stay
	// stable for anyone already holding it.
	if existing, ok := p.modules[name]; ok && existing.Path == path {
		return existing, nil
	}
	p.modules[name] = mod
	p.hashes[path] = xxh3.Hash(src)
	p.logger.Debug("module loaded",
		slog.String("module", name),
		slog.String("file", path))
	return mod, nil
}

func (p *Program) rememberFailure(name string, err error) {
	p.mu.Lock()
	p.failed[name] = err
	p.mu.Unlock()
}

// Preload parses every .py file under the roots ahead of time, in parallel.
// Files that fail to parse are logged and skipped.
func (p *Program) Preload(ctx context.Context) error {
	var files []string
	for _, root := range p.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && SkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".py") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walk %s: %w", root, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, file := range files {
		g.Go(func() error {
			if _, err := p.LoadFile(gctx, file); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("preload failed",
					slog.String("file", file),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	return g.Wait()
}

// SkipDir reports whether a directory never holds project sources.
func SkipDir(name string) bool {
	switch name {
	case "__pycache__", "node_modules", "venv", ".venv", "site-packages", "build", "dist":
		return true
	}
	return strings.HasPrefix(name, ".")
}

// Fingerprint is an xxh3 digest over every source file loaded so far. Two
// runs over unchanged sources yield the same fingerprint.
func (p *Program) Fingerprint() string {
	p.mu.Lock()
	paths := make([]string, 0, len(p.hashes))
	for path := range p.hashes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	h := xxh3.New()
	for _, path := range paths {
		fmt.Fprintf(h, "%s=%016x\n", path, p.hashes[path])
	}
	p.mu.Unlock()
	return hex.EncodeToString(h.Sum(nil))
}

// Files returns the loaded source files, sorted.
func (p *Program) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	files := make([]string, 0, len(p.hashes))
	for path := range p.hashes {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Namespace builds the namespace map of a loaded module.
func (p *Program) Namespace(mod *syntax.Module) Map {
	return Build(mod, p)
}
