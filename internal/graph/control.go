package graph

import (
	"context"

	"github.com/zheng/pyflow/internal/label"
	"github.com/zheng/pyflow/internal/syntax"
)

// Cluster colors.
const (
	colorTrue       = "darkgreen"
	colorFalse      = "coral"
	colorForBody    = "darkblue"
	colorWhileBody  = "pink"
	colorForElse    = "goldenrod"
	colorWhileElse  = "darkgrey"
	colorTry        = "darkgoldenrod"
	colorExcept     = "red"
	colorTryElse    = "darkgreen"
	colorFinally    = "brown"
	colorWith       = "purple"
	colorMatch      = "lightcyan"
	colorExpansion  = "grey"
	colorInTrue     = "lightblue"
	colorInFalse    = "lightpink"
	colorInTry      = "lightyellow"
	colorInExcept   = "lightcoral"
	colorInTryElse  = "lightgreen"
	colorInFinally  = "peachpuff"
	colorInWith     = "lightcyan"
	colorInLoopBody = "lightblue"
)

func (b *Builder) ifStmt(ctx context.Context, sc scope, s *syntax.If, next NodeID) error {
	id := b.id(sc, s)
	b.add(sc, id, NodeKindIf, "If\nCondition: "+label.Render(s.Test, sc.ns), s)
	if err := b.condition(ctx, sc, s.Test, id); err != nil {
		return err
	}

	prefix := "cluster_" + string(id)
	trueScope := b.region(sc, prefix+"_true", "True Branch", colorTrue)
	if err := b.block(ctx, trueScope, s.Body, entry{from: id, label: LabelTrue, kind: EdgeKindBranch}, next, colorInTrue); err != nil {
		return err
	}

	falseScope := b.region(sc, prefix+"_false", "False Branch", colorFalse)
	if len(s.Orelse) == 0 {
		// Nothing to run: the false branch falls through.
		b.edge(id, next, LabelFalse, EdgeKindBranch)
		return nil
	}
	return b.block(ctx, falseScope, s.Orelse, entry{from: id, label: LabelFalse, kind: EdgeKindBranch}, next, colorInFalse)
}

// condition links a compound test expression to its statement. A bare
// name is already shown in the statement's own label.
func (b *Builder) condition(ctx context.Context, sc scope, test syntax.Expr, id NodeID) error {
	if _, bare := test.(*syntax.Name); bare || test == nil {
		return nil
	}
	return b.expr(ctx, sc, test, id, LabelCondition)
}

// Loops are drawn single-pass: the body's last statement continues to
// whatever follows the loop, not back to the header. Only continue edges
// point back.
func (b *Builder) forStmt(ctx context.Context, sc scope, s *syntax.For, next NodeID) error {
	id := b.id(sc, s)
	kind := "For"
	if s.Async {
		kind = "AsyncFor"
	}
	text := kind + "\nFor: " + label.Render(s.Target, sc.ns) + " in " + label.Render(s.Iter, sc.ns)
	b.add(sc, id, NodeKindFor, text, s)
	if err := b.calls(ctx, sc, s.Iter, id); err != nil {
		return err
	}
	return b.loop(ctx, sc, id, s.Body, s.Orelse, next, colorForBody, colorForElse)
}

func (b *Builder) whileStmt(ctx context.Context, sc scope, s *syntax.While, next NodeID) error {
	id := b.id(sc, s)
	b.add(sc, id, NodeKindWhile, "While\nWhile: "+label.Render(s.Test, sc.ns), s)
	if err := b.condition(ctx, sc, s.Test, id); err != nil {
		return err
	}
	return b.loop(ctx, sc, id, s.Body, s.Orelse, next, colorWhileBody, colorWhileElse)
}

func (b *Builder) loop(ctx context.Context, sc scope, id NodeID, body, orelse []syntax.Stmt, next NodeID, bodyColor, elseColor string) error {
	b.loops = append(b.loops, loopContext{
		header: id,
		exit:   next,
		region: sc.region,
		depth:  sc.depth,
	})
	prefix := "cluster_" + string(id)
	bodyScope := b.region(sc, prefix+"_body", "Loop Body", bodyColor)
	err := b.block(ctx, bodyScope, body, entry{from: id, kind: EdgeKindContainment}, next, colorInLoopBody)
	b.loops = b.loops[:len(b.loops)-1]
	if err != nil || len(orelse) == 0 {
		return err
	}

	// The else clause runs after the loop, so a break in it belongs to an
	// enclosing loop.
	elseScope := b.region(sc, prefix+"_orelse", "Else", elseColor)
	return b.block(ctx, elseScope, orelse, entry{from: id, label: LabelElse, kind: EdgeKindBranch}, next, colorInFalse)
}

func (b *Builder) breakStmt(sc scope, s *syntax.Break) error {
	if len(b.loops) == 0 {
		return &ControlFlowError{Err: ErrBreakOutsideLoop, Module: sc.module.Name, Line: s.Pos().Line}
	}
	id := b.id(sc, s)
	b.add(sc, id, NodeKindBreak, "Break", s)
	b.edge(id, b.loopExit(b.loops[len(b.loops)-1]), LabelBreak, EdgeKindJump)
	return nil
}

// loopExit returns where a break lands. A loop that ends its enclosing
// body has nothing after it, so a synthetic exit node stands in.
func (b *Builder) loopExit(lc loopContext) NodeID {
	if lc.exit != "" {
		return lc.exit
	}
	id := lc.header + "|exit"
	b.graph.AddNode(Node{ID: id, Label: "Loop Exit", Kind: NodeKindLoopExit, Region: lc.region, Depth: lc.depth})
	return id
}

func (b *Builder) continueStmt(sc scope, s *syntax.Continue) error {
	if len(b.loops) == 0 {
		return &ControlFlowError{Err: ErrContinueOutsideLoop, Module: sc.module.Name, Line: s.Pos().Line}
	}
	id := b.id(sc, s)
	b.add(sc, id, NodeKindContinue, "Continue", s)
	b.edge(id, b.loops[len(b.loops)-1].header, LabelContinue, EdgeKindJump)
	return nil
}

// tryStmt chains the try body into the else clause, the else clause and
// every handler into the finally clause, and the finally clause into next.
// Each handler hangs off the try (or the previous handler) by an edge
// labeled with the exception it catches.
func (b *Builder) tryStmt(ctx context.Context, sc scope, s *syntax.Try, next NodeID) error {
	id := b.id(sc, s)
	text := "Try"
	if len(s.Handlers) > 0 && s.Handlers[0].Group {
		text = "TryStar"
	}
	b.add(sc, id, NodeKindTry, text, s)

	finallyFirst := next
	if len(s.Finalbody) > 0 {
		finallyFirst = b.id(sc, s.Finalbody[0])
	}
	elseFirst := finallyFirst
	if len(s.Orelse) > 0 {
		elseFirst = b.id(sc, s.Orelse[0])
	}

	prefix := "cluster_" + string(id)
	tryScope := b.region(sc, prefix+"_try", "Try Block", colorTry)
	if err := b.block(ctx, tryScope, s.Body, entry{from: id, kind: EdgeKindContainment}, elseFirst, colorInTry); err != nil {
		return err
	}

	prev := id
	for _, h := range s.Handlers {
		hid := b.id(sc, h)
		caught := LabelAllExceptions
		if h.Type != nil {
			caught = label.Render(h.Type, sc.ns)
		}
		hScope := b.region(sc, "cluster_"+string(hid)+"_except", "Except "+caught, colorExcept)
		text := "ExceptHandler\nType: " + caught
		if h.Name != "" {
			text += " as " + h.Name
		}
		b.add(hScope, hid, NodeKindHandler, text, h)
		b.edge(prev, hid, caught, EdgeKindException)
		if err := b.block(ctx, hScope, h.Body, entry{from: hid, kind: EdgeKindContainment}, finallyFirst, colorInExcept); err != nil {
			return err
		}
		prev = hid
	}

	if len(s.Orelse) > 0 {
		elseScope := b.region(sc, prefix+"_else", "Else Block", colorTryElse)
		if err := b.block(ctx, elseScope, s.Orelse, entry{}, finallyFirst, colorInTryElse); err != nil {
			return err
		}
	}
	if len(s.Finalbody) > 0 {
		finallyScope := b.region(sc, prefix+"_finally", "Finally Block", colorFinally)
		if err := b.block(ctx, finallyScope, s.Finalbody, entry{}, next, colorInFinally); err != nil {
			return err
		}
	}
	return nil
}

// withStmt draws the context managers as a chain of items, then walks the
// body from the with node.
func (b *Builder) withStmt(ctx context.Context, sc scope, s *syntax.With, next NodeID) error {
	id := b.id(sc, s)
	text := "With Statement"
	if s.Async {
		text = "Async With Statement"
	}
	b.add(sc, id, NodeKindWith, text, s)

	inner := b.region(sc, "cluster_"+string(id)+"_with", "With Block", colorWith)
	prev, edgeLabel := id, LabelWithItem
	for _, item := range s.Items {
		iid := b.id(inner, item)
		b.add(inner, iid, NodeKindWithItem, "WithItem: "+label.Render(item, sc.ns), item)
		b.edge(prev, iid, edgeLabel, EdgeKindFlow)
		if err := b.calls(ctx, inner, item.Context, iid); err != nil {
			return err
		}
		prev, edgeLabel = iid, LabelNextItem
	}
	return b.block(ctx, inner, s.Body, entry{from: id, kind: EdgeKindContainment}, next, colorInWith)
}

// matchStmt draws one case node per clause, linked from the match subject.
func (b *Builder) matchStmt(ctx context.Context, sc scope, s *syntax.Match, next NodeID) error {
	id := b.id(sc, s)
	b.add(sc, id, NodeKindMatch, "Match: "+label.Render(s.Subject, sc.ns), s)
	if err := b.calls(ctx, sc, s.Subject, id); err != nil {
		return err
	}

	inner := b.region(sc, "cluster_"+string(id)+"_match", "", colorMatch)
	for _, c := range s.Cases {
		cid := b.id(inner, c)
		text := "Case: " + label.Render(c.Pattern, sc.ns)
		if c.Guard != nil {
			text += " if " + label.Render(c.Guard, sc.ns)
		}
		b.add(inner, cid, NodeKindCase, text, c)
		b.edge(id, cid, "", EdgeKindBranch)
		if err := b.block(ctx, inner, c.Body, entry{from: cid, kind: EdgeKindContainment}, next, colorMatch); err != nil {
			return err
		}
	}
	return nil
}
