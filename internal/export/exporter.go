package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zheng/pyflow/internal/graph"
)

// Format names an output format.
type Format string

const (
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
	FormatJSON    Format = "json"
	FormatOutline Format = "outline"
	FormatPDF     Format = "pdf"
	FormatSVG     Format = "svg"
	FormatPNG     Format = "png"
)

// ErrUnknownFormat is returned for a format name or file extension that
// has no writer.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatDOT, FormatMermaid, FormatJSON, FormatOutline, FormatPDF, FormatSVG, FormatPNG}
}

// ParseFormat validates a format name. Case is ignored.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// IsImage reports whether f is produced by Graphviz rather than written
// as text.
func (f Format) IsImage() bool {
	return f == FormatPDF || f == FormatSVG || f == FormatPNG
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format    Format
	Direction string // TB / LR / BT / RL
	Title     string
	DotBinary string // Graphviz 可执行文件，图片格式使用
}

// DefaultExportOptions returns default export options
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:    FormatDOT,
		Direction: "TB",
		DotBinary: "dot",
	}
}

// Exporter writes flow graphs in the text formats and drives Graphviz for
// the image ones.
type Exporter struct {
	logger *slog.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// Export writes g to w in a text format. Image formats go through
// RenderFile.
func (e *Exporter) Export(w io.Writer, g *graph.FlowGraph, opts ExportOptions) error {
	opts = withDefaults(opts)
	switch opts.Format {
	case FormatDOT:
		return writeDOT(w, g, opts)
	case FormatMermaid:
		return writeMermaid(w, g, opts)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	case FormatOutline:
		return writeOutline(w, g, opts)
	case FormatPDF, FormatSVG, FormatPNG:
		return fmt.Errorf("%w: %s needs an output file", ErrUnknownFormat, opts.Format)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
}

func withDefaults(opts ExportOptions) ExportOptions {
	def := DefaultExportOptions()
	if opts.Format == "" {
		opts.Format = def.Format
	}
	if opts.Direction == "" {
		opts.Direction = def.Direction
	}
	if opts.DotBinary == "" {
		opts.DotBinary = def.DotBinary
	}
	return opts
}

// title returns the caption of the drawing: the configured title, or the
// entry function's name.
func title(g *graph.FlowGraph, opts ExportOptions) string {
	if opts.Title != "" {
		return opts.Title
	}
	if n, ok := g.Node(g.Entry); ok {
		return oneLine(n.Label)
	}
	return "flow"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}
