package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zheng/pyflow/internal/graph"
)

// RenderError reports a failure to produce an output file.
type RenderError struct {
	Format Format
	Path   string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s to %s: %v", e.Format, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

var extFormats = map[string]Format{
	".dot":     FormatDOT,
	".gv":      FormatDOT,
	".mmd":     FormatMermaid,
	".mermaid": FormatMermaid,
	".json":    FormatJSON,
	".txt":     FormatOutline,
	".pdf":     FormatPDF,
	".svg":     FormatSVG,
	".png":     FormatPNG,
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext)
}

// RenderFile writes g to path. An unset format is taken from the file
// extension. Image formats are produced by piping DOT through Graphviz.
func (e *Exporter) RenderFile(ctx context.Context, g *graph.FlowGraph, path string, opts ExportOptions) error {
	if opts.Format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return &RenderError{Path: path, Err: err}
		}
		opts.Format = f
	}
	opts = withDefaults(opts)
	fail := func(err error) error {
		return &RenderError{Format: opts.Format, Path: path, Err: err}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail(err)
		}
	}

	if !opts.Format.IsImage() {
		var buf bytes.Buffer
		if err := e.Export(&buf, g, opts); err != nil {
			return fail(err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fail(err)
		}
		e.logger.Debug("graph written", slog.String("path", path), slog.String("format", string(opts.Format)))
		return nil
	}

	var dot bytes.Buffer
	if err := writeDOT(&dot, g, opts); err != nil {
		return fail(err)
	}
	cmd := exec.CommandContext(ctx, opts.DotBinary, "-T"+string(opts.Format), "-o", path)
	cmd.Stdin = &dot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fail(fmt.Errorf("%s: %w: %s", opts.DotBinary, err, msg))
		}
		return fail(fmt.Errorf("%s: %w", opts.DotBinary, err))
	}
	e.logger.Debug("graph rendered",
		slog.String("path", path),
		slog.String("format", string(opts.Format)),
		slog.Int("nodes", g.Stats.Nodes))
	return nil
}
