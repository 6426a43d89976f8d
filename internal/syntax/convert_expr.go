package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// expr converts an expression node. A nil input yields a nil Expr, never a
// typed nil.
func (c *converter) expr(n *sitter.Node) Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return &Name{exprBase: exprBase{c.newBase(n)}, ID: c.text(n)}
	case "attribute":
		return &Attribute{
			exprBase: exprBase{c.newBase(n)},
			Value:    c.expr(n.ChildByFieldName("object")),
			Attr:     c.text(n.ChildByFieldName("attribute")),
		}
	case "call":
		return c.call(n)
	case "binary_operator":
		return &BinOp{
			exprBase: exprBase{c.newBase(n)},
			Left:     c.expr(n.ChildByFieldName("left")),
			Op:       BinaryOperator(c.operatorToken(n)),
			Right:    c.expr(n.ChildByFieldName("right")),
		}
	case "unary_operator":
		return &UnaryOp{
			exprBase: exprBase{c.newBase(n)},
			Op:       UnaryOperator(c.operatorToken(n)),
			Operand:  c.expr(n.ChildByFieldName("argument")),
		}
	case "not_operator":
		return &UnaryOp{
			exprBase: exprBase{c.newBase(n)},
			Op:       OpNot,
			Operand:  c.expr(n.ChildByFieldName("argument")),
		}
	case "boolean_operator":
		return c.boolOp(n)
	case "comparison_operator":
		return c.compare(n)
	case "integer", "float":
		kind := ConstInt
		raw := c.text(n)
		switch {
		case strings.HasSuffix(raw, "j") || strings.HasSuffix(raw, "J"):
			kind = ConstComplex
		case n.Type() == "float":
			kind = ConstFloat
		}
		return c.constant(n, kind)
	case "string", "concatenated_string":
		kind := ConstString
		if prefix := stringPrefix(c.text(n)); strings.ContainsAny(prefix, "bB") {
			kind = ConstBytes
		}
		return c.constant(n, kind)
	case "true", "false":
		return c.constant(n, ConstBool)
	case "none":
		return c.constant(n, ConstNone)
	case "ellipsis":
		return c.constant(n, ConstEllipsis)
	case "list":
		return &List{exprBase: exprBase{c.newBase(n)}, Elts: c.exprs(named(n))}
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return &Tuple{exprBase: exprBase{c.newBase(n)}, Elts: c.exprs(named(n))}
	case "list_pattern":
		return &List{exprBase: exprBase{c.newBase(n)}, Elts: c.exprs(named(n))}
	case "set":
		return &Set{exprBase: exprBase{c.newBase(n)}, Elts: c.exprs(named(n))}
	case "dictionary":
		return c.dict(n)
	case "parenthesized_expression":
		if parts := named(n); len(parts) == 1 {
			return c.expr(parts[0])
		}
	case "subscript":
		s := &Subscript{
			exprBase: exprBase{c.newBase(n)},
			Value:    c.expr(n.ChildByFieldName("value")),
		}
		var index []*sitter.Node
		value := n.ChildByFieldName("value")
		for _, child := range named(n) {
			if !sameNode(child, value) {
				index = append(index, child)
			}
		}
		if len(index) == 1 {
			s.Index = c.expr(index[0])
		} else if len(index) > 1 {
			s.Index = &Tuple{exprBase: exprBase{c.newBase(n)}, Elts: c.exprs(index)}
		}
		return s
	case "list_splat", "list_splat_pattern":
		return c.starred(n, false)
	case "dictionary_splat", "dictionary_splat_pattern":
		return c.starred(n, true)
	}
	return c.unsupportedExpr(n)
}

func (c *converter) exprs(nodes []*sitter.Node) []Expr {
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.expr(n))
	}
	return out
}

func (c *converter) unsupportedExpr(n *sitter.Node) Expr {
	e := &UnsupportedExpr{
		exprBase: exprBase{c.newBase(n)},
		Type:     n.Type(),
		Text:     c.text(n),
	}
	for _, child := range named(n) {
		e.Nodes = append(e.Nodes, c.any(child))
	}
	return e
}

func (c *converter) constant(n *sitter.Node, kind ConstKind) *Constant {
	return &Constant{exprBase: exprBase{c.newBase(n)}, Value: kind, Raw: c.text(n)}
}

func (c *converter) starred(n *sitter.Node, double bool) *Starred {
	s := &Starred{exprBase: exprBase{c.newBase(n)}, Double: double}
	if parts := named(n); len(parts) > 0 {
		s.Value = c.expr(parts[0])
	}
	return s
}

// operatorToken returns the text of the "operator" field of n.
func (c *converter) operatorToken(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Type()
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && !child.IsNamed() {
			return child.Type()
		}
	}
	return ""
}

func (c *converter) call(n *sitter.Node) *Call {
	call := &Call{
		exprBase: exprBase{c.newBase(n)},
		Func:     c.expr(n.ChildByFieldName("function")),
	}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return call
	}
	if args.Type() == "generator_expression" {
		call.Args = append(call.Args, c.expr(args))
		return call
	}
	for _, arg := range named(args) {
		switch arg.Type() {
		case "keyword_argument":
			call.Keywords = append(call.Keywords, &Keyword{
				base:  c.newBase(arg),
				Arg:   c.text(arg.ChildByFieldName("name")),
				Value: c.expr(arg.ChildByFieldName("value")),
			})
		case "dictionary_splat":
			kw := &Keyword{base: c.newBase(arg)}
			if parts := named(arg); len(parts) > 0 {
				kw.Value = c.expr(parts[0])
			}
			call.Keywords = append(call.Keywords, kw)
		default:
			call.Args = append(call.Args, c.expr(arg))
		}
	}
	return call
}

// boolOp flattens left-nested chains of the same operator into one BoolOp.
func (c *converter) boolOp(n *sitter.Node) *BoolOp {
	op := OpAnd
	if c.operatorToken(n) == "or" {
		op = OpOr
	}
	b := &BoolOp{exprBase: exprBase{c.newBase(n)}, Op: op}
	var collect func(side *sitter.Node)
	collect = func(side *sitter.Node) {
		if side == nil {
			return
		}
		if side.Type() == "boolean_operator" && c.operatorToken(side) == c.operatorToken(n) {
			collect(side.ChildByFieldName("left"))
			collect(side.ChildByFieldName("right"))
			return
		}
		b.Values = append(b.Values, c.expr(side))
	}
	collect(n.ChildByFieldName("left"))
	collect(n.ChildByFieldName("right"))
	return b
}

// compare walks the alternating operand/operator children of a comparison.
// "not in" and "is not" arrive either as one aliased token or as two.
func (c *converter) compare(n *sitter.Node) *Compare {
	cmp := &Compare{exprBase: exprBase{c.newBase(n)}}
	pending := ""
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		if !child.IsNamed() || child.Type() == "not in" || child.Type() == "is not" {
			tok := child.Type()
			if pending != "" {
				tok = pending + " " + tok
			}
			pending = tok
			continue
		}
		if cmp.Left == nil {
			cmp.Left = c.expr(child)
			continue
		}
		cmp.Ops = append(cmp.Ops, CompareOperator(pending))
		cmp.Comparators = append(cmp.Comparators, c.expr(child))
		pending = ""
	}
	return cmp
}

func (c *converter) dict(n *sitter.Node) *Dict {
	d := &Dict{exprBase: exprBase{c.newBase(n)}}
	for _, entry := range named(n) {
		switch entry.Type() {
		case "pair":
			d.Keys = append(d.Keys, c.expr(entry.ChildByFieldName("key")))
			d.Values = append(d.Values, c.expr(entry.ChildByFieldName("value")))
		case "dictionary_splat":
			d.Keys = append(d.Keys, nil)
			if parts := named(entry); len(parts) > 0 {
				d.Values = append(d.Values, c.expr(parts[0]))
			} else {
				d.Values = append(d.Values, nil)
			}
		default:
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, c.expr(entry))
		}
	}
	return d
}

// stringPrefix returns the literal prefix (r, b, f, rb, ...) of a string.
func stringPrefix(raw string) string {
	for i, r := range raw {
		if r == '"' || r == '\'' {
			return raw[:i]
		}
	}
	return ""
}
