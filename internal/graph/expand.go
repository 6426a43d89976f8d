package graph

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zheng/pyflow/internal/label"
	"github.com/zheng/pyflow/internal/syntax"
)

// expr draws e below parent. Calls may be inlined; any other expression
// shows its rendered text and pulls out the calls and comparisons inside.
func (b *Builder) expr(ctx context.Context, sc scope, e syntax.Expr, parent NodeID, edgeLabel string) error {
	if call, ok := e.(*syntax.Call); ok {
		return b.call(ctx, sc, call, parent, edgeLabel)
	}
	id := b.id(sc, e)
	text := label.Render(e, sc.ns)
	kind := KindOf(e.Kind())
	switch v := e.(type) {
	case *syntax.Name, *syntax.Constant, *syntax.Attribute:
		text = e.Kind().String() + "\n" + text
	case *syntax.UnsupportedExpr:
		kind = NodeKind(v.Type)
		text = v.Type + "\n" + firstLine(text)
		b.graph.AddDiagnostic(Diagnostic{Kind: DiagUnsupported, Node: id, Line: e.Pos().Line, Message: v.Type})
	}
	b.add(sc, id, kind, text, e)
	b.edge(parent, id, edgeLabel, EdgeKindContainment)
	return b.nested(ctx, sc, e, id)
}

// calls expands e itself when it is a call or comparison, otherwise the
// outermost calls and comparisons inside it.
func (b *Builder) calls(ctx context.Context, sc scope, e syntax.Expr, parent NodeID) error {
	if e == nil {
		return nil
	}
	switch e.(type) {
	case *syntax.Call, *syntax.Compare:
		return b.expr(ctx, sc, e, parent, "")
	}
	return b.nested(ctx, sc, e, parent)
}

// nested expands the outermost calls and comparisons below n, linking each
// to parent.
func (b *Builder) nested(ctx context.Context, sc scope, n syntax.Node, parent NodeID) error {
	for _, child := range n.Children() {
		switch c := child.(type) {
		case syntax.Stmt:
			continue
		case syntax.Expr:
			if err := b.calls(ctx, sc, c, parent); err != nil {
				return err
			}
		default:
			if err := b.nested(ctx, sc, c, parent); err != nil {
				return err
			}
		}
	}
	return nil
}

// call draws a call and, while budget remains, inlines the body of the
// callable it resolves to under a prefix derived from the call's own ID.
// A call that cannot be resolved stays a leaf and is reported as a
// diagnostic.
func (b *Builder) call(ctx context.Context, sc scope, c *syntax.Call, parent NodeID, edgeLabel string) error {
	id := b.id(sc, c)
	text := label.Render(c, sc.ns)
	b.add(sc, id, NodeKindCall, "Call\n"+text, c)
	b.edge(parent, id, edgeLabel, EdgeKindContainment)
	if err := b.nested(ctx, sc, c, id); err != nil {
		return err
	}
	if sc.budget <= 0 {
		return nil
	}

	callee := strings.Join(syntax.DottedPath(c.Func), ".")
	if b.stopped(callee, sc) {
		b.graph.AddDiagnostic(Diagnostic{Kind: DiagStopped, Node: id, Line: c.Pos().Line, Message: callee})
		return nil
	}

	target, err := b.resolver.Resolve(ctx, c, sc.ns, b.currentClass())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		b.graph.AddDiagnostic(Diagnostic{Kind: DiagUnresolved, Node: id, Line: c.Pos().Line, Message: err.Error()})
		b.logger.Debug("call not expanded",
			slog.String("call", text),
			slog.String("module", sc.module.Name),
			slog.String("reason", err.Error()))
		return nil
	}

	b.graph.Stats.Expansions++
	b.logger.Debug("expanding call",
		slog.String("call", text),
		slog.String("target", target.Qualname()),
		slog.Int("budget", sc.budget-1))

	inner := scope{
		prefix: id,
		module: target.Module,
		ns:     target.Namespace,
		budget: sc.budget - 1,
		depth:  sc.depth + 1,
		region: sc.region,
	}
	inner = b.region(inner, "cluster_"+string(id)+"_call", target.Qualname(), colorExpansion)

	switch {
	case target.Context != nil:
		b.pushClass(target.Context)
		defer b.popClass()
	case target.Class == nil:
		b.pushClass(nil)
		defer b.popClass()
	}
	_, err = b.function(ctx, inner, target.Def, entry{from: id, kind: EdgeKindContainment})
	return err
}

func (b *Builder) stopped(callee string, sc scope) bool {
	if callee == "" || len(b.stop) == 0 {
		return false
	}
	last := callee
	if i := strings.LastIndexByte(callee, '.'); i >= 0 {
		last = callee[i+1:]
	}
	return b.stop[callee] || b.stop[last] || b.stop[sc.ns.Qualify(callee)]
}
