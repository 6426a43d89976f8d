package syntax

// Module is a parsed source file.
type Module struct {
	base
	Name string // canonical dotted module name
	Path string // file path the module was read from
	Body []Stmt
	// Package is true for __init__.py modules; relative imports resolve
	// against Name itself instead of its parent.
	Package bool
}

func (*Module) Kind() Kind         { return KindModule }
func (m *Module) Children() []Node { return stmtsToNodes(m.Body) }

// Lookup returns the last top-level statement that binds name: a function
// or class definition, or an assignment target.
func (m *Module) Lookup(name string) (Stmt, bool) {
	return lookupBinding(m.Body, name)
}

// Classes returns the top-level class definitions in declaration order.
func (m *Module) Classes() []*ClassDef {
	var out []*ClassDef
	for _, s := range m.Body {
		if c, ok := s.(*ClassDef); ok {
			out = append(out, c)
		}
	}
	return out
}

func lookupBinding(body []Stmt, name string) (Stmt, bool) {
	var found Stmt
	for _, s := range body {
		switch v := s.(type) {
		case *FunctionDef:
			if v.Name == name {
				found = v
			}
		case *ClassDef:
			if v.Name == name {
				found = v
			}
		case *Assign:
			for _, t := range v.Targets {
				if n, ok := t.(*Name); ok && n.ID == name {
					found = v
				}
			}
		}
	}
	return found, found != nil
}

// FunctionDef is a def or async def statement.
type FunctionDef struct {
	stmtBase
	Name       string
	Args       *Arguments
	Decorators []Expr
	Returns    Expr
	Body       []Stmt
	Async      bool
}

func (*FunctionDef) Kind() Kind { return KindFunctionDef }
func (f *FunctionDef) Children() []Node {
	out := appendNodes[Expr](nil, f.Decorators...)
	if f.Args != nil {
		out = append(out, f.Args)
	}
	return append(out, stmtsToNodes(f.Body)...)
}

// Arguments is the parameter list of a FunctionDef.
type Arguments struct {
	base
	Params []Param
}

// Param is a single formal parameter.
type Param struct {
	Name    string
	Star    string // "", "*" or "**"
	Default Expr
}

func (*Arguments) Kind() Kind { return KindArguments }
func (a *Arguments) Children() []Node {
	var out []Node
	for _, p := range a.Params {
		out = appendNodes(out, p.Default)
	}
	return out
}

// ClassDef is a class statement.
type ClassDef struct {
	stmtBase
	Name       string
	Bases      []Expr
	Decorators []Expr
	Body       []Stmt
}

func (*ClassDef) Kind() Kind { return KindClassDef }
func (c *ClassDef) Children() []Node {
	out := appendNodes[Expr](nil, c.Decorators...)
	out = appendNodes(out, c.Bases...)
	return append(out, stmtsToNodes(c.Body)...)
}

// Method returns the method defined directly in the class body.
func (c *ClassDef) Method(name string) (*FunctionDef, bool) {
	var found *FunctionDef
	for _, s := range c.Body {
		if f, ok := s.(*FunctionDef); ok && f.Name == name {
			found = f
		}
	}
	return found, found != nil
}

// If is an if statement. elif chains are nested Ifs in Orelse.
type If struct {
	stmtBase
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
	// Elif is true when this If was produced from an elif clause.
	Elif bool
}

func (*If) Kind() Kind { return KindIf }
func (s *If) Children() []Node {
	out := appendNodes(nil, s.Test)
	out = append(out, stmtsToNodes(s.Body)...)
	return append(out, stmtsToNodes(s.Orelse)...)
}

// For is a for or async for loop.
type For struct {
	stmtBase
	Target Expr
	Iter   Expr
	Body   []Stmt
	Orelse []Stmt
	Async  bool
}

func (*For) Kind() Kind { return KindFor }
func (s *For) Children() []Node {
	out := appendNodes(nil, s.Target, s.Iter)
	out = append(out, stmtsToNodes(s.Body)...)
	return append(out, stmtsToNodes(s.Orelse)...)
}

// While is a while loop.
type While struct {
	stmtBase
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

func (*While) Kind() Kind { return KindWhile }
func (s *While) Children() []Node {
	out := appendNodes(nil, s.Test)
	out = append(out, stmtsToNodes(s.Body)...)
	return append(out, stmtsToNodes(s.Orelse)...)
}

// Try is a try statement with its handlers and trailing blocks.
type Try struct {
	stmtBase
	Body      []Stmt
	Handlers  []*ExceptHandler
	Orelse    []Stmt
	Finalbody []Stmt
}

func (*Try) Kind() Kind { return KindTry }
func (s *Try) Children() []Node {
	out := stmtsToNodes(s.Body)
	out = appendNodes(out, s.Handlers...)
	out = append(out, stmtsToNodes(s.Orelse)...)
	return append(out, stmtsToNodes(s.Finalbody)...)
}

// ExceptHandler is one except clause. Type is nil for a bare except.
type ExceptHandler struct {
	base
	Type  Expr
	Name  string
	Body  []Stmt
	Group bool // except*
}

func (*ExceptHandler) Kind() Kind { return KindExceptHandler }
func (h *ExceptHandler) Children() []Node {
	return append(appendNodes(nil, h.Type), stmtsToNodes(h.Body)...)
}

// With is a with or async with statement.
type With struct {
	stmtBase
	Items []*WithItem
	Body  []Stmt
	Async bool
}

func (*With) Kind() Kind { return KindWith }
func (s *With) Children() []Node {
	out := appendNodes[*WithItem](nil, s.Items...)
	return append(out, stmtsToNodes(s.Body)...)
}

// WithItem is one context manager of a With. Vars is nil without "as".
type WithItem struct {
	base
	Context Expr
	Vars    Expr
}

func (*WithItem) Kind() Kind         { return KindWithItem }
func (w *WithItem) Children() []Node { return appendNodes(nil, w.Context, w.Vars) }

// Match is a match statement.
type Match struct {
	stmtBase
	Subject Expr
	Cases   []*MatchCase
}

func (*Match) Kind() Kind { return KindMatch }
func (s *Match) Children() []Node {
	return appendNodes(appendNodes(nil, s.Subject), s.Cases...)
}

// MatchCase is one case clause.
type MatchCase struct {
	base
	Pattern *Pattern
	Guard   Expr
	Body    []Stmt
}

func (*MatchCase) Kind() Kind { return KindMatchCase }
func (c *MatchCase) Children() []Node {
	out := []Node{c.Pattern}
	out = appendNodes(out, c.Guard)
	return append(out, stmtsToNodes(c.Body)...)
}

// Assign is "t1 = t2 = value".
type Assign struct {
	stmtBase
	Targets []Expr
	Value   Expr
}

func (*Assign) Kind() Kind { return KindAssign }
func (s *Assign) Children() []Node {
	return appendNodes(appendNodes[Expr](nil, s.Targets...), s.Value)
}

// AugAssign is "target op= value".
type AugAssign struct {
	stmtBase
	Target Expr
	Op     Operator
	Value  Expr
}

func (*AugAssign) Kind() Kind         { return KindAugAssign }
func (s *AugAssign) Children() []Node { return appendNodes(nil, s.Target, s.Value) }

// AnnAssign is "target: annotation [= value]".
type AnnAssign struct {
	stmtBase
	Target     Expr
	Annotation Expr
	Value      Expr
}

func (*AnnAssign) Kind() Kind { return KindAnnAssign }
func (s *AnnAssign) Children() []Node {
	return appendNodes(nil, s.Target, s.Annotation, s.Value)
}

// Return is a return statement. Value is nil for a bare return.
type Return struct {
	stmtBase
	Value Expr
}

func (*Return) Kind() Kind         { return KindReturn }
func (s *Return) Children() []Node { return appendNodes(nil, s.Value) }

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	stmtBase
	Value Expr
}

func (*ExprStmt) Kind() Kind         { return KindExpr }
func (s *ExprStmt) Children() []Node { return appendNodes(nil, s.Value) }

// Raise is a raise statement.
type Raise struct {
	stmtBase
	Exc   Expr
	Cause Expr
}

func (*Raise) Kind() Kind         { return KindRaise }
func (s *Raise) Children() []Node { return appendNodes(nil, s.Exc, s.Cause) }

// Pass is a pass statement.
type Pass struct{ stmtBase }

func (*Pass) Kind() Kind       { return KindPass }
func (*Pass) Children() []Node { return nil }

// Break is a break statement.
type Break struct{ stmtBase }

func (*Break) Kind() Kind       { return KindBreak }
func (*Break) Children() []Node { return nil }

// Continue is a continue statement.
type Continue struct{ stmtBase }

func (*Continue) Kind() Kind       { return KindContinue }
func (*Continue) Children() []Node { return nil }

// Alias is one imported name with its optional "as" binding.
type Alias struct {
	Name   string
	AsName string
}

// Bound returns the local name the alias introduces.
func (a Alias) Bound() string {
	if a.AsName != "" {
		return a.AsName
	}
	return a.Name
}

// Import is "import a.b as c, d".
type Import struct {
	stmtBase
	Names []Alias
}

func (*Import) Kind() Kind       { return KindImport }
func (*Import) Children() []Node { return nil }

// ImportFrom is "from ..module import x as y". Level counts leading dots.
type ImportFrom struct {
	stmtBase
	Module   string
	Level    int
	Names    []Alias
	Wildcard bool
}

func (*ImportFrom) Kind() Kind       { return KindImportFrom }
func (*ImportFrom) Children() []Node { return nil }

// UnsupportedStmt is any statement without a dedicated variant (global,
// del, assert, type aliases, parse errors, ...).
type UnsupportedStmt struct {
	stmtBase
	Type  string // tree-sitter node type
	Text  string
	Nodes []Node
}

func (*UnsupportedStmt) Kind() Kind         { return KindUnsupported }
func (s *UnsupportedStmt) Children() []Node { return s.Nodes }
