package syntax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// DefaultMaxFileSize is the largest source file Parse accepts by default.
const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	// ErrFileTooLarge is returned when source exceeds the parser's limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidContent is returned for source that is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxFileSize sets the maximum accepted source size in bytes.
func WithMaxFileSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger used for parse warnings.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parser converts Python source into the syntax tree of this package using
// tree-sitter.
//
// Every node produced by one Parser gets a distinct Slot, across all the
// files it parses. A Parser is safe for concurrent use: each Parse call
// builds its own tree-sitter parser and slots come from an atomic counter.
type Parser struct {
	maxFileSize int64
	logger      *slog.Logger
	slots       atomic.Uint64
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses src as the module called name, read from path.
//
// Parsing is error tolerant: regions tree-sitter cannot parse become
// UnsupportedStmt nodes of type "ERROR" and a warning is logged.
func (p *Parser) Parse(ctx context.Context, src []byte, path, name string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(src)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(src), p.maxFileSize)
	}
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidContent, path)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		p.logger.Warn("source contains syntax errors",
			slog.String("file", path),
			slog.String("module", name))
	}

	c := &converter{src: src, slots: &p.slots}
	mod := &Module{
		base:    c.newBase(root),
		Name:    name,
		Path:    path,
		Package: strings.HasSuffix(path, "__init__.py"),
	}
	mod.Body = c.block(root)
	return mod, nil
}
