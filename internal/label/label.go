// Package label renders syntax nodes as the short strings shown inside
// flow graph boxes.
package label

import (
	"strings"

	"github.com/zheng/pyflow/internal/namespace"
	"github.com/zheng/pyflow/internal/syntax"
)

var opSymbols = map[syntax.Operator]string{
	syntax.OpAdd:      "+",
	syntax.OpSub:      "-",
	syntax.OpMult:     "*",
	syntax.OpDiv:      "/",
	syntax.OpFloorDiv: "//",
	syntax.OpMod:      "%",
	syntax.OpPow:      "**",
	syntax.OpMatMult:  "@",
	syntax.OpBitAnd:   "&",
	syntax.OpBitOr:    "|",
	syntax.OpBitXor:   "^",
	syntax.OpLShift:   "<<",
	syntax.OpRShift:   ">>",
	syntax.OpInvert:   "~",
	syntax.OpUAdd:     "+",
	syntax.OpUSub:     "-",
	syntax.OpNot:      "not",
	syntax.OpAnd:      "and",
	syntax.OpOr:       "or",
	syntax.OpEq:       "==",
	syntax.OpNotEq:    "!=",
	syntax.OpLt:       "<",
	syntax.OpLtE:      "<=",
	syntax.OpGt:       ">",
	syntax.OpGtE:      ">=",
	syntax.OpIs:       "is",
	syntax.OpIsNot:    "is not",
	syntax.OpIn:       "in",
	syntax.OpNotIn:    "not in",
}

// OpSymbol returns the source symbol of an operator, or its name when it
// has none.
func OpSymbol(op syntax.Operator) string {
	if s, ok := opSymbols[op]; ok {
		return s
	}
	return op.String()
}

// Render returns the display text of n. Names are qualified through ns so
// aliased modules show their canonical name. Nodes without a dedicated
// rendering fall back to their kind name, or their source text when they
// are unsupported grammar.
func Render(n syntax.Node, ns namespace.Map) string {
	r := renderer{ns: ns}
	return r.node(n)
}

type renderer struct {
	ns namespace.Map
}

func (r renderer) node(n syntax.Node) string {
	if n == nil {
		return ""
	}
	switch v := n.(type) {
	case *syntax.Name:
		return r.ns.Qualify(v.ID)
	case *syntax.Attribute:
		return r.node(v.Value) + "." + v.Attr
	case *syntax.Constant:
		return Repr(v)
	case *syntax.Call:
		return r.call(v)
	case *syntax.Keyword:
		if v.Arg == "" {
			return "**" + r.node(v.Value)
		}
		return v.Arg + "=" + r.node(v.Value)
	case *syntax.BinOp:
		return r.node(v.Left) + " " + OpSymbol(v.Op) + " " + r.node(v.Right)
	case *syntax.UnaryOp:
		if v.Op == syntax.OpNot {
			return "not " + r.node(v.Operand)
		}
		return OpSymbol(v.Op) + r.node(v.Operand)
	case *syntax.BoolOp:
		return r.join(v.Values, " "+OpSymbol(v.Op)+" ")
	case *syntax.Compare:
		var b strings.Builder
		b.WriteString(r.node(v.Left))
		for i, op := range v.Ops {
			b.WriteString(" " + OpSymbol(op) + " ")
			if i < len(v.Comparators) {
				b.WriteString(r.node(v.Comparators[i]))
			}
		}
		return b.String()
	case *syntax.List:
		return "[" + r.join(v.Elts, ", ") + "]"
	case *syntax.Tuple:
		if len(v.Elts) == 1 {
			return "(" + r.node(v.Elts[0]) + ",)"
		}
		return "(" + r.join(v.Elts, ", ") + ")"
	case *syntax.Set:
		return "{" + r.join(v.Elts, ", ") + "}"
	case *syntax.Dict:
		parts := make([]string, len(v.Values))
		for i := range v.Values {
			if v.Keys[i] == nil {
				parts[i] = "**" + r.node(v.Values[i])
				continue
			}
			parts[i] = r.node(v.Keys[i]) + ": " + r.node(v.Values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *syntax.Subscript:
		index := r.node(v.Index)
		if t, ok := v.Index.(*syntax.Tuple); ok && len(t.Elts) > 1 {
			index = r.join(t.Elts, ", ")
		}
		return r.node(v.Value) + "[" + index + "]"
	case *syntax.Starred:
		if v.Double {
			return "**" + r.node(v.Value)
		}
		return "*" + r.node(v.Value)
	case *syntax.Pattern:
		return Pattern(v)
	case *syntax.Assign:
		return r.join(v.Targets, ", ") + " = " + r.node(v.Value)
	case *syntax.AugAssign:
		return r.node(v.Target) + " " + OpSymbol(v.Op) + "= " + r.node(v.Value)
	case *syntax.AnnAssign:
		s := r.node(v.Target) + ": " + r.node(v.Annotation)
		if v.Value != nil {
			s += " = " + r.node(v.Value)
		}
		return s
	case *syntax.Return:
		if v.Value == nil {
			return "return"
		}
		return "return " + r.node(v.Value)
	case *syntax.ExprStmt:
		return r.node(v.Value)
	case *syntax.WithItem:
		if v.Vars == nil {
			return r.node(v.Context)
		}
		return r.node(v.Context) + " as " + r.node(v.Vars)
	case *syntax.UnsupportedExpr:
		return v.Text
	case *syntax.UnsupportedStmt:
		return v.Text
	}
	return n.Kind().String()
}

func (r renderer) call(c *syntax.Call) string {
	args := make([]string, 0, len(c.Args)+len(c.Keywords))
	for _, a := range c.Args {
		args = append(args, r.node(a))
	}
	for _, k := range c.Keywords {
		args = append(args, r.node(k))
	}
	return r.node(c.Func) + "(" + strings.Join(args, ", ") + ")"
}

func (r renderer) join(exprs []syntax.Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = r.node(e)
	}
	return strings.Join(parts, sep)
}

// Pattern renders a case pattern as "<Form>: <text>".
func Pattern(p *syntax.Pattern) string {
	return p.Form.String() + ": " + p.Text
}

// Args renders a parameter list the way the arguments box shows it, one
// "arg: 'name'" line per parameter.
func Args(a *syntax.Arguments, ns namespace.Map) []string {
	if a == nil {
		return nil
	}
	var lines []string
	for _, p := range a.Params {
		if p.Name == "" {
			continue
		}
		line := "arg: '" + p.Star + p.Name + "'"
		if p.Default != nil {
			line += " = " + Render(p.Default, ns)
		}
		lines = append(lines, line)
	}
	return lines
}
