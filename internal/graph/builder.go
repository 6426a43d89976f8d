package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zheng/pyflow/internal/label"
	"github.com/zheng/pyflow/internal/namespace"
	"github.com/zheng/pyflow/internal/syntax"
)

// DefaultDepth is the default expansion budget.
const DefaultDepth = 2

// Options configures a Builder.
type Options struct {
	// Depth is the expansion budget: how many nested call levels are
	// inlined before calls are drawn as leaves. Zero draws every call as a
	// leaf; a negative value selects DefaultDepth.
	Depth int
	// StopFunctions are never expanded. Entries match either the called
	// name ("save") or the whole callee text ("db.save").
	StopFunctions []string
	Logger        *slog.Logger
}

// Builder walks a callable's syntax tree and accumulates its flow graph,
// inlining the bodies of calls it can resolve. A Builder holds the loop and
// class context stacks of one run and cannot be reused.
type Builder struct {
	resolver *namespace.Resolver
	depth    int
	stop     map[string]bool
	logger   *slog.Logger

	graph   *FlowGraph
	loops   []loopContext
	classes []*namespace.ClassRef
	used    bool
}

type loopContext struct {
	header NodeID
	exit   NodeID // "" when the loop is the last statement of its body
	region string
	depth  int
}

// scope is the expansion context a subtree is walked in.
type scope struct {
	prefix NodeID
	module *syntax.Module
	ns     namespace.Map
	budget int
	depth  int
	region string
}

// entry is the edge that leads into the first statement of a block.
type entry struct {
	from  NodeID
	label string
	kind  EdgeKind
}

// NewBuilder creates a Builder resolving calls through resolver.
func NewBuilder(resolver *namespace.Resolver, opts Options) *Builder {
	b := &Builder{
		resolver: resolver,
		depth:    opts.Depth,
		stop:     make(map[string]bool, len(opts.StopFunctions)),
		logger:   opts.Logger,
		graph:    New(),
	}
	if b.depth < 0 {
		b.depth = DefaultDepth
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	for _, name := range opts.StopFunctions {
		b.stop[name] = true
	}
	return b
}

// Build walks the body of c and returns its flow graph. Calls that cannot
// be resolved become leaves and are listed in the graph's diagnostics; a
// break or continue outside a loop aborts the build with a
// *ControlFlowError.
func (b *Builder) Build(ctx context.Context, c namespace.Callable) (*FlowGraph, error) {
	if b.used {
		return nil, ErrBuilderUsed
	}
	b.used = true
	if c.Def == nil || c.Module == nil {
		return nil, ErrNoEntry
	}

	sc := scope{
		module: c.Module,
		ns:     b.resolver.Program().Namespace(c.Module),
		budget: b.depth,
	}
	b.pushClass(c.ClassRef())
	defer b.popClass()

	id, err := b.function(ctx, sc, c.Def, entry{})
	if err != nil {
		return nil, err
	}
	b.graph.Entry = id
	b.logger.Debug("flow graph built",
		slog.String("entry", c.Qualname()),
		slog.Int("nodes", b.graph.Stats.Nodes),
		slog.Int("edges", b.graph.Stats.Edges),
		slog.Int("expansions", b.graph.Stats.Expansions))
	return b.graph, nil
}

func (b *Builder) id(sc scope, n syntax.Node) NodeID {
	return Identity(sc.prefix, n.Slot())
}

func (b *Builder) add(sc scope, id NodeID, kind NodeKind, text string, n syntax.Node) {
	b.graph.AddNode(Node{
		ID:     id,
		Label:  text,
		Kind:   kind,
		Region: sc.region,
		Line:   n.Pos().Line,
		Depth:  sc.depth,
	})
}

func (b *Builder) edge(from, to NodeID, text string, kind EdgeKind) {
	if from == "" || to == "" {
		return
	}
	b.graph.AddEdge(Edge{
		From:        from,
		To:          to,
		Label:       text,
		Kind:        kind,
		Constrained: kind != EdgeKindJump,
	})
}

// region opens a cluster nested in the scope's current one and returns the
// scope moved into it.
func (b *Builder) region(sc scope, id, text, color string) scope {
	b.graph.AddRegion(Region{ID: id, Label: text, Color: color, Parent: sc.region})
	sc.region = id
	return sc
}

func (b *Builder) pushClass(ref *namespace.ClassRef) { b.classes = append(b.classes, ref) }
func (b *Builder) popClass()                         { b.classes = b.classes[:len(b.classes)-1] }

func (b *Builder) currentClass() *namespace.ClassRef {
	if len(b.classes) == 0 {
		return nil
	}
	return b.classes[len(b.classes)-1]
}

// function draws a def, its arguments and decorators, and walks its body.
// The body's last statement has no continuation: control returns to the
// caller, which the graph does not draw.
func (b *Builder) function(ctx context.Context, sc scope, def *syntax.FunctionDef, in entry) (NodeID, error) {
	id := b.id(sc, def)
	kind := "FunctionDef"
	if def.Async {
		kind = "AsyncFunctionDef"
	}
	b.add(sc, id, NodeKindFunction, fmt.Sprintf("%s\nname: '%s'", kind, def.Name), def)
	b.edge(in.from, id, in.label, in.kind)

	if lines := label.Args(def.Args, sc.ns); len(lines) > 0 {
		argsID := b.id(sc, def.Args)
		b.add(sc, argsID, NodeKindArguments, "arguments\n"+strings.Join(lines, "\n"), def.Args)
		b.edge(id, argsID, "", EdgeKindContainment)
	}
	for _, dec := range def.Decorators {
		if err := b.expr(ctx, sc, dec, id, LabelDecorator); err != nil {
			return id, err
		}
	}

	// Loops never span a def boundary.
	saved := b.loops
	b.loops = nil
	defer func() { b.loops = saved }()

	return id, b.block(ctx, sc, def.Body, entry{from: id, kind: EdgeKindContainment}, "", "lightgreen")
}

// block walks a statement list. Each statement continues into the next
// one, the last into cont. compoundColor styles the clusters drawn around
// compound statements of this block.
func (b *Builder) block(ctx context.Context, sc scope, body []syntax.Stmt, in entry, cont NodeID, compoundColor string) error {
	for i, stmt := range body {
		next := cont
		if i+1 < len(body) {
			next = b.id(sc, body[i+1])
		}
		inner := sc
		if isCompound(stmt) {
			inner = b.region(sc, "cluster_"+string(b.id(sc, stmt)), "", compoundColor)
		}
		if i == 0 {
			b.edge(in.from, b.id(sc, stmt), in.label, in.kind)
		}
		if err := b.stmt(ctx, inner, stmt, next); err != nil {
			return err
		}
	}
	return nil
}

func isCompound(s syntax.Stmt) bool {
	switch s.(type) {
	case *syntax.FunctionDef, *syntax.ClassDef, *syntax.If, *syntax.For,
		*syntax.While, *syntax.Try, *syntax.With, *syntax.Match:
		return true
	}
	return false
}

// stmt draws one statement. next is where control goes when the statement
// completes normally, or "" when nothing follows.
func (b *Builder) stmt(ctx context.Context, sc scope, s syntax.Stmt, next NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := b.id(sc, s)

	switch s := s.(type) {
	case *syntax.FunctionDef:
		// A nested def only binds a name here; its body is drawn but flows nowhere.
		if _, err := b.function(ctx, sc, s, entry{}); err != nil {
			return err
		}
	case *syntax.ClassDef:
		return b.classDef(ctx, sc, s, next)
	case *syntax.If:
		return b.ifStmt(ctx, sc, s, next)
	case *syntax.For:
		return b.forStmt(ctx, sc, s, next)
	case *syntax.While:
		return b.whileStmt(ctx, sc, s, next)
	case *syntax.Try:
		return b.tryStmt(ctx, sc, s, next)
	case *syntax.With:
		return b.withStmt(ctx, sc, s, next)
	case *syntax.Match:
		return b.matchStmt(ctx, sc, s, next)
	case *syntax.Break:
		return b.breakStmt(sc, s)
	case *syntax.Continue:
		return b.continueStmt(sc, s)

	case *syntax.Return:
		b.add(sc, id, NodeKindReturn, "Return", s)
		if s.Value != nil {
			return b.expr(ctx, sc, s.Value, id, "")
		}
		return nil
	case *syntax.Raise:
		b.add(sc, id, KindOf(s.Kind()), "Raise", s)
		if s.Exc != nil {
			if err := b.expr(ctx, sc, s.Exc, id, ""); err != nil {
				return err
			}
		}
		if s.Cause != nil {
			return b.expr(ctx, sc, s.Cause, id, "from")
		}
		return nil

	case *syntax.ExprStmt:
		b.add(sc, id, KindOf(s.Kind()), "Expr", s)
		if err := b.expr(ctx, sc, s.Value, id, LabelExpressionIs); err != nil {
			return err
		}
	case *syntax.Assign, *syntax.AugAssign, *syntax.AnnAssign:
		b.add(sc, id, KindOf(s.Kind()), s.Kind().String()+"\n"+label.Render(s, sc.ns), s)
		if err := b.nested(ctx, sc, s, id); err != nil {
			return err
		}
	case *syntax.Import:
		b.add(sc, id, KindOf(s.Kind()), "Import\n"+aliases(s.Names), s)
	case *syntax.ImportFrom:
		module := strings.Repeat(".", s.Level) + s.Module
		names := aliases(s.Names)
		if s.Wildcard {
			names = "*"
		}
		b.add(sc, id, KindOf(s.Kind()), fmt.Sprintf("ImportFrom\nfrom %s import %s", module, names), s)
	case *syntax.UnsupportedStmt:
		if err := b.unsupported(ctx, sc, id, s.Type, label.Render(s, sc.ns), s); err != nil {
			return err
		}
	default:
		b.add(sc, id, KindOf(s.Kind()), s.Kind().String(), s)
	}

	b.edge(id, next, LabelNextStep, EdgeKindFlow)
	return nil
}

// unsupported draws grammar with no dedicated handling under its kind and
// source text, then walks its structural children.
func (b *Builder) unsupported(ctx context.Context, sc scope, id NodeID, kind, text string, n syntax.Node) error {
	b.add(sc, id, NodeKind(kind), kind+"\n"+firstLine(text), n)
	b.graph.AddDiagnostic(Diagnostic{
		Kind:    DiagUnsupported,
		Node:    id,
		Line:    n.Pos().Line,
		Message: kind,
	})
	var stmts []syntax.Stmt
	for _, child := range n.Children() {
		switch c := child.(type) {
		case syntax.Stmt:
			stmts = append(stmts, c)
		case syntax.Expr:
			if err := b.calls(ctx, sc, c, id); err != nil {
				return err
			}
		}
	}
	return b.block(ctx, sc, stmts, entry{from: id, kind: EdgeKindContainment}, "", "lightgrey")
}

func (b *Builder) classDef(ctx context.Context, sc scope, s *syntax.ClassDef, next NodeID) error {
	id := b.id(sc, s)
	text := fmt.Sprintf("ClassDef\nname: '%s'", s.Name)
	if len(s.Bases) > 0 {
		bases := make([]string, len(s.Bases))
		for i, base := range s.Bases {
			bases[i] = label.Render(base, sc.ns)
		}
		text += "\nbases: " + strings.Join(bases, ", ")
	}
	b.add(sc, id, NodeKindClass, text, s)
	for _, dec := range s.Decorators {
		if err := b.expr(ctx, sc, dec, id, LabelDecorator); err != nil {
			return err
		}
	}

	b.pushClass(&namespace.ClassRef{Module: sc.module, Class: s})
	defer b.popClass()
	return b.block(ctx, sc, s.Body, entry{from: id, kind: EdgeKindContainment}, next, "lightgreen")
}

func aliases(names []syntax.Alias) string {
	parts := make([]string, len(names))
	for i, a := range names {
		parts[i] = a.Name
		if a.AsName != "" {
			parts[i] += " as " + a.AsName
		}
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
