package syntax

// Name is an identifier reference.
type Name struct {
	exprBase
	ID string
}

func (*Name) Kind() Kind       { return KindName }
func (*Name) Children() []Node { return nil }

// Attribute is "value.attr".
type Attribute struct {
	exprBase
	Value Expr
	Attr  string
}

func (*Attribute) Kind() Kind         { return KindAttribute }
func (a *Attribute) Children() []Node { return appendNodes(nil, a.Value) }

// Call is a call expression.
type Call struct {
	exprBase
	Func     Expr
	Args     []Expr
	Keywords []*Keyword
}

func (*Call) Kind() Kind { return KindCall }
func (c *Call) Children() []Node {
	out := appendNodes(nil, c.Func)
	out = appendNodes(out, c.Args...)
	return appendNodes(out, c.Keywords...)
}

// Keyword is "arg=value", or "**value" when Arg is empty.
type Keyword struct {
	base
	Arg   string
	Value Expr
}

func (*Keyword) Kind() Kind         { return KindKeyword }
func (k *Keyword) Children() []Node { return appendNodes(nil, k.Value) }

// BinOp is a binary arithmetic or bitwise operation.
type BinOp struct {
	exprBase
	Left  Expr
	Op    Operator
	Right Expr
}

func (*BinOp) Kind() Kind         { return KindBinOp }
func (b *BinOp) Children() []Node { return appendNodes(nil, b.Left, b.Right) }

// UnaryOp is "-x", "+x", "~x" or "not x".
type UnaryOp struct {
	exprBase
	Op      Operator
	Operand Expr
}

func (*UnaryOp) Kind() Kind         { return KindUnaryOp }
func (u *UnaryOp) Children() []Node { return appendNodes(nil, u.Operand) }

// BoolOp is a flattened chain of "and" or "or".
type BoolOp struct {
	exprBase
	Op     Operator
	Values []Expr
}

func (*BoolOp) Kind() Kind         { return KindBoolOp }
func (b *BoolOp) Children() []Node { return appendNodes(nil, b.Values...) }

// Compare is a possibly chained comparison "a < b <= c".
type Compare struct {
	exprBase
	Left        Expr
	Ops         []Operator
	Comparators []Expr
}

func (*Compare) Kind() Kind { return KindCompare }
func (c *Compare) Children() []Node {
	return appendNodes(appendNodes(nil, c.Left), c.Comparators...)
}

// ConstKind classifies literal constants.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstComplex
	ConstString
	ConstBytes
	ConstEllipsis
)

// Constant is a literal. Raw holds the literal exactly as written.
type Constant struct {
	exprBase
	Value ConstKind
	Raw   string
}

func (*Constant) Kind() Kind       { return KindConstant }
func (*Constant) Children() []Node { return nil }

// List is a list display.
type List struct {
	exprBase
	Elts []Expr
}

func (*List) Kind() Kind         { return KindList }
func (l *List) Children() []Node { return appendNodes(nil, l.Elts...) }

// Tuple is a tuple display, parenthesized or bare.
type Tuple struct {
	exprBase
	Elts []Expr
}

func (*Tuple) Kind() Kind         { return KindTuple }
func (t *Tuple) Children() []Node { return appendNodes(nil, t.Elts...) }

// Set is a set display.
type Set struct {
	exprBase
	Elts []Expr
}

func (*Set) Kind() Kind         { return KindSet }
func (s *Set) Children() []Node { return appendNodes(nil, s.Elts...) }

// Dict is a dict display. A nil key marks a "**mapping" entry.
type Dict struct {
	exprBase
	Keys   []Expr
	Values []Expr
}

func (*Dict) Kind() Kind { return KindDict }
func (d *Dict) Children() []Node {
	var out []Node
	for i := range d.Values {
		out = appendNodes(out, d.Keys[i], d.Values[i])
	}
	return out
}

// Subscript is "value[index]".
type Subscript struct {
	exprBase
	Value Expr
	Index Expr
}

func (*Subscript) Kind() Kind         { return KindSubscript }
func (s *Subscript) Children() []Node { return appendNodes(nil, s.Value, s.Index) }

// Starred is "*value" or, with Double, "**value".
type Starred struct {
	exprBase
	Value  Expr
	Double bool
}

func (*Starred) Kind() Kind         { return KindStarred }
func (s *Starred) Children() []Node { return appendNodes(nil, s.Value) }

// PatternKind classifies match-case patterns.
type PatternKind uint8

const (
	MatchValue PatternKind = iota
	MatchSingleton
	MatchSequence
	MatchMapping
	MatchClass
	MatchStar
	MatchAs
	MatchOr
)

var patternKindNames = [...]string{
	MatchValue:     "MatchValue",
	MatchSingleton: "MatchSingleton",
	MatchSequence:  "MatchSequence",
	MatchMapping:   "MatchMapping",
	MatchClass:     "MatchClass",
	MatchStar:      "MatchStar",
	MatchAs:        "MatchAs",
	MatchOr:        "MatchOr",
}

func (k PatternKind) String() string { return patternKindNames[k] }

// Pattern is a case pattern. Patterns are kept as classified source text;
// the graph never looks inside them.
type Pattern struct {
	exprBase
	Form PatternKind
	Text string
	// Capture is the bound name of a capture or "as" pattern.
	Capture string
}

func (*Pattern) Kind() Kind       { return KindPattern }
func (*Pattern) Children() []Node { return nil }

// UnsupportedExpr is any expression without a dedicated variant (lambda,
// comprehensions, conditional expressions, f-strings, ...).
type UnsupportedExpr struct {
	exprBase
	Type  string
	Text  string
	Nodes []Node
}

func (*UnsupportedExpr) Kind() Kind         { return KindUnsupported }
func (e *UnsupportedExpr) Children() []Node { return e.Nodes }

// DottedPath flattens a Name/Attribute chain into its parts. It returns nil
// when the chain is rooted in anything other than a Name.
func DottedPath(e Expr) []string {
	switch v := e.(type) {
	case *Name:
		return []string{v.ID}
	case *Attribute:
		head := DottedPath(v.Value)
		if head == nil {
			return nil
		}
		return append(head, v.Attr)
	}
	return nil
}
