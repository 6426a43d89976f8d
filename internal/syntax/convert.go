package syntax

import (
	"strings"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
)

// converter turns one tree-sitter tree into the tagged syntax tree.
type converter struct {
	src   []byte
	slots *atomic.Uint64
}

func (c *converter) newBase(n *sitter.Node) base {
	p := n.StartPoint()
	return base{
		slot: Slot(c.slots.Add(1)),
		pos:  Pos{Line: int(p.Row) + 1, Column: int(p.Column) + 1},
	}
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

// named returns the named children of n, without comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// childrenOfType returns the direct children of n with the given type.
func childrenOfType(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && child.Type() == typ {
			out = append(out, child)
		}
	}
	return out
}

func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && !child.IsNamed() && child.Type() == tok {
			return true
		}
	}
	return false
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

var statementTypes = map[string]bool{
	"function_definition":     true,
	"class_definition":        true,
	"decorated_definition":    true,
	"if_statement":            true,
	"for_statement":           true,
	"while_statement":         true,
	"try_statement":           true,
	"with_statement":          true,
	"match_statement":         true,
	"expression_statement":    true,
	"return_statement":        true,
	"raise_statement":         true,
	"pass_statement":          true,
	"break_statement":         true,
	"continue_statement":      true,
	"import_statement":        true,
	"import_from_statement":   true,
	"future_import_statement": true,
	"global_statement":        true,
	"nonlocal_statement":      true,
	"delete_statement":        true,
	"assert_statement":        true,
	"print_statement":         true,
	"exec_statement":          true,
	"type_alias_statement":    true,
}

// block converts the statements directly under n (a module or block).
func (c *converter) block(n *sitter.Node) []Stmt {
	var out []Stmt
	for _, child := range named(n) {
		if s := c.stmt(child); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *converter) stmt(n *sitter.Node) Stmt {
	switch n.Type() {
	case "function_definition":
		return c.functionDef(n, nil)
	case "class_definition":
		return c.classDef(n, nil)
	case "decorated_definition":
		var decorators []Expr
		for _, d := range childrenOfType(n, "decorator") {
			if parts := named(d); len(parts) > 0 {
				decorators = append(decorators, c.expr(parts[0]))
			}
		}
		def := n.ChildByFieldName("definition")
		switch {
		case def == nil:
			return c.unsupportedStmt(n)
		case def.Type() == "class_definition":
			return c.classDef(def, decorators)
		default:
			return c.functionDef(def, decorators)
		}
	case "if_statement":
		return c.ifStmt(n)
	case "for_statement":
		s := &For{
			stmtBase: stmtBase{c.newBase(n)},
			Target:   c.expr(n.ChildByFieldName("left")),
			Iter:     c.expr(n.ChildByFieldName("right")),
			Body:     c.block(n.ChildByFieldName("body")),
			Async:    hasToken(n, "async"),
		}
		s.Orelse = c.elseBody(n.ChildByFieldName("alternative"))
		return s
	case "while_statement":
		s := &While{
			stmtBase: stmtBase{c.newBase(n)},
			Test:     c.expr(n.ChildByFieldName("condition")),
			Body:     c.block(n.ChildByFieldName("body")),
		}
		s.Orelse = c.elseBody(n.ChildByFieldName("alternative"))
		return s
	case "try_statement":
		return c.tryStmt(n)
	case "with_statement":
		return c.withStmt(n)
	case "match_statement":
		return c.matchStmt(n)
	case "expression_statement":
		return c.expressionStatement(n)
	case "return_statement":
		s := &Return{stmtBase: stmtBase{c.newBase(n)}}
		if parts := named(n); len(parts) > 0 {
			s.Value = c.expr(parts[0])
		}
		return s
	case "raise_statement":
		s := &Raise{stmtBase: stmtBase{c.newBase(n)}}
		cause := n.ChildByFieldName("cause")
		if cause != nil {
			s.Cause = c.expr(cause)
		}
		if parts := named(n); len(parts) > 0 && !sameNode(parts[0], cause) {
			s.Exc = c.expr(parts[0])
		}
		return s
	case "pass_statement":
		return &Pass{stmtBase{c.newBase(n)}}
	case "break_statement":
		return &Break{stmtBase{c.newBase(n)}}
	case "continue_statement":
		return &Continue{stmtBase{c.newBase(n)}}
	case "import_statement":
		return &Import{stmtBase: stmtBase{c.newBase(n)}, Names: c.aliases(named(n))}
	case "import_from_statement":
		return c.importFrom(n)
	}
	return c.unsupportedStmt(n)
}

func (c *converter) unsupportedStmt(n *sitter.Node) Stmt {
	s := &UnsupportedStmt{
		stmtBase: stmtBase{c.newBase(n)},
		Type:     n.Type(),
		Text:     c.text(n),
	}
	for _, child := range named(n) {
		s.Nodes = append(s.Nodes, c.any(child))
	}
	return s
}

// any converts a child of an unsupported node, which may hold either
// statements or expressions.
func (c *converter) any(n *sitter.Node) Node {
	if statementTypes[n.Type()] {
		return c.stmt(n)
	}
	if n.Type() == "block" {
		s := &UnsupportedStmt{stmtBase: stmtBase{c.newBase(n)}, Type: "block", Text: c.text(n)}
		for _, st := range c.block(n) {
			s.Nodes = append(s.Nodes, st)
		}
		return s
	}
	return c.expr(n)
}

func (c *converter) functionDef(n *sitter.Node, decorators []Expr) *FunctionDef {
	f := &FunctionDef{
		stmtBase:   stmtBase{c.newBase(n)},
		Name:       c.text(n.ChildByFieldName("name")),
		Decorators: decorators,
		Async:      hasToken(n, "async"),
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		f.Args = c.arguments(params)
	} else {
		f.Args = &Arguments{base: c.newBase(n)}
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		f.Returns = c.expr(ret)
	}
	f.Body = c.block(n.ChildByFieldName("body"))
	return f
}

func (c *converter) arguments(n *sitter.Node) *Arguments {
	a := &Arguments{base: c.newBase(n)}
	for _, p := range named(n) {
		a.Params = append(a.Params, c.param(p))
	}
	return a
}

func (c *converter) param(n *sitter.Node) Param {
	switch n.Type() {
	case "identifier":
		return Param{Name: c.text(n)}
	case "list_splat_pattern":
		return Param{Name: c.paramName(n), Star: "*"}
	case "dictionary_splat_pattern":
		return Param{Name: c.paramName(n), Star: "**"}
	case "default_parameter", "typed_default_parameter":
		return Param{
			Name:    c.paramName(n.ChildByFieldName("name")),
			Default: c.expr(n.ChildByFieldName("value")),
		}
	case "typed_parameter":
		parts := named(n)
		if len(parts) > 0 {
			inner := c.param(parts[0])
			return Param{Name: inner.Name, Star: inner.Star}
		}
	case "keyword_separator":
		return Param{Star: "*"}
	case "positional_separator":
		return Param{Star: "/"}
	}
	return Param{Name: c.text(n)}
}

func (c *converter) paramName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "identifier" {
		return c.text(n)
	}
	for _, child := range named(n) {
		if child.Type() == "identifier" {
			return c.text(child)
		}
	}
	return strings.TrimLeft(c.text(n), "*")
}

func (c *converter) classDef(n *sitter.Node, decorators []Expr) *ClassDef {
	cls := &ClassDef{
		stmtBase:   stmtBase{c.newBase(n)},
		Name:       c.text(n.ChildByFieldName("name")),
		Decorators: decorators,
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for _, s := range named(supers) {
			cls.Bases = append(cls.Bases, c.expr(s))
		}
	}
	cls.Body = c.block(n.ChildByFieldName("body"))
	return cls
}

func (c *converter) ifStmt(n *sitter.Node) *If {
	s := &If{
		stmtBase: stmtBase{c.newBase(n)},
		Test:     c.expr(n.ChildByFieldName("condition")),
		Body:     c.block(n.ChildByFieldName("consequence")),
	}

	var alternatives []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && (child.Type() == "elif_clause" || child.Type() == "else_clause") {
			alternatives = append(alternatives, child)
		}
	}

	// Fold the clauses from the back so that each elif owns the rest.
	var orelse []Stmt
	for i := len(alternatives) - 1; i >= 0; i-- {
		alt := alternatives[i]
		if alt.Type() == "else_clause" {
			orelse = c.block(alt.ChildByFieldName("body"))
			continue
		}
		orelse = []Stmt{&If{
			stmtBase: stmtBase{c.newBase(alt)},
			Test:     c.expr(alt.ChildByFieldName("condition")),
			Body:     c.block(alt.ChildByFieldName("consequence")),
			Orelse:   orelse,
			Elif:     true,
		}}
	}
	s.Orelse = orelse
	return s
}

func (c *converter) elseBody(n *sitter.Node) []Stmt {
	if n == nil {
		return nil
	}
	if body := n.ChildByFieldName("body"); body != nil {
		return c.block(body)
	}
	for _, child := range named(n) {
		if child.Type() == "block" {
			return c.block(child)
		}
	}
	return nil
}

func (c *converter) tryStmt(n *sitter.Node) *Try {
	s := &Try{
		stmtBase: stmtBase{c.newBase(n)},
		Body:     c.block(n.ChildByFieldName("body")),
	}
	for _, child := range named(n) {
		switch child.Type() {
		case "except_clause", "except_group_clause":
			s.Handlers = append(s.Handlers, c.exceptHandler(child))
		case "else_clause":
			s.Orelse = c.elseBody(child)
		case "finally_clause":
			s.Finalbody = c.elseBody(child)
		}
	}
	return s
}

func (c *converter) exceptHandler(n *sitter.Node) *ExceptHandler {
	h := &ExceptHandler{
		base:  c.newBase(n),
		Group: n.Type() == "except_group_clause",
	}
	var head []*sitter.Node
	for _, child := range named(n) {
		if child.Type() == "block" {
			h.Body = c.block(child)
			continue
		}
		head = append(head, child)
	}
	if len(head) == 0 {
		return h
	}
	if head[0].Type() == "as_pattern" {
		parts := named(head[0])
		if len(parts) > 0 {
			h.Type = c.expr(parts[0])
		}
		if alias := head[0].ChildByFieldName("alias"); alias != nil {
			h.Name = c.text(alias)
		} else if len(parts) > 1 {
			h.Name = c.text(parts[1])
		}
		return h
	}
	h.Type = c.expr(head[0])
	if len(head) > 1 {
		h.Name = c.text(head[1])
	}
	return h
}

func (c *converter) withStmt(n *sitter.Node) *With {
	s := &With{
		stmtBase: stmtBase{c.newBase(n)},
		Body:     c.block(n.ChildByFieldName("body")),
		Async:    hasToken(n, "async"),
	}
	for _, clause := range childrenOfType(n, "with_clause") {
		for _, item := range named(clause) {
			if item.Type() == "with_item" {
				s.Items = append(s.Items, c.withItem(item))
			}
		}
	}
	return s
}

func (c *converter) withItem(n *sitter.Node) *WithItem {
	item := &WithItem{base: c.newBase(n)}
	value := n.ChildByFieldName("value")
	if value == nil {
		if parts := named(n); len(parts) > 0 {
			value = parts[0]
		}
	}
	if value != nil && value.Type() == "as_pattern" {
		parts := named(value)
		if len(parts) > 0 {
			item.Context = c.expr(parts[0])
		}
		target := value.ChildByFieldName("alias")
		if target == nil && len(parts) > 1 {
			target = parts[1]
		}
		if target != nil {
			if inner := named(target); target.Type() == "as_pattern_target" && len(inner) > 0 {
				target = inner[0]
			}
			item.Vars = c.expr(target)
		}
		return item
	}
	item.Context = c.expr(value)
	if alias := n.ChildByFieldName("alias"); alias != nil {
		item.Vars = c.expr(alias)
	}
	return item
}

func (c *converter) matchStmt(n *sitter.Node) *Match {
	s := &Match{stmtBase: stmtBase{c.newBase(n)}}
	var subjects []Expr
	var clauses []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "case_clause":
			clauses = append(clauses, child)
		case "block":
			clauses = append(clauses, childrenOfType(child, "case_clause")...)
		}
	}
	for _, child := range named(n) {
		if child.Type() != "case_clause" && child.Type() != "block" {
			subjects = append(subjects, c.expr(child))
		}
	}
	switch len(subjects) {
	case 0:
	case 1:
		s.Subject = subjects[0]
	default:
		t := &Tuple{Elts: subjects}
		t.base = c.newBase(n)
		s.Subject = t
	}
	for _, clause := range clauses {
		s.Cases = append(s.Cases, c.matchCase(clause))
	}
	return s
}

func (c *converter) matchCase(n *sitter.Node) *MatchCase {
	mc := &MatchCase{base: c.newBase(n)}
	var patterns []*sitter.Node
	for _, child := range named(n) {
		if child.Type() == "case_pattern" {
			patterns = append(patterns, child)
		}
	}
	mc.Pattern = c.pattern(n, patterns)
	if guard := n.ChildByFieldName("guard"); guard != nil {
		if parts := named(guard); len(parts) > 0 {
			mc.Guard = c.expr(parts[0])
		}
	}
	if body := n.ChildByFieldName("consequence"); body != nil {
		mc.Body = c.block(body)
	} else {
		for _, child := range named(n) {
			if child.Type() == "block" {
				mc.Body = c.block(child)
			}
		}
	}
	return mc
}

func (c *converter) pattern(clause *sitter.Node, patterns []*sitter.Node) *Pattern {
	p := &Pattern{}
	if len(patterns) == 0 {
		p.base = c.newBase(clause)
		p.Form, p.Text = MatchAs, "_"
		return p
	}
	p.base = c.newBase(patterns[0])
	if len(patterns) > 1 {
		texts := make([]string, len(patterns))
		for i, pat := range patterns {
			texts[i] = c.text(pat)
		}
		p.Form, p.Text = MatchSequence, strings.Join(texts, ", ")
		return p
	}

	p.Text = c.text(patterns[0])
	inner := named(patterns[0])
	if len(inner) == 0 {
		p.Form = MatchAs
		return p
	}
	switch node := inner[0]; node.Type() {
	case "class_pattern":
		p.Form = MatchClass
	case "list_pattern", "tuple_pattern":
		p.Form = MatchSequence
	case "dict_pattern":
		p.Form = MatchMapping
	case "splat_pattern":
		p.Form = MatchStar
		p.Capture = strings.TrimLeft(c.text(node), "*")
	case "union_pattern":
		p.Form = MatchOr
	case "as_pattern":
		p.Form = MatchAs
		if parts := named(node); len(parts) > 0 {
			p.Capture = c.text(parts[len(parts)-1])
		}
	case "dotted_name":
		if strings.Contains(p.Text, ".") {
			p.Form = MatchValue
		} else {
			p.Form = MatchAs
			if p.Text != "_" {
				p.Capture = p.Text
			}
		}
	case "true", "false", "none":
		p.Form = MatchSingleton
	default:
		p.Form = MatchValue
	}
	return p
}

func (c *converter) expressionStatement(n *sitter.Node) Stmt {
	parts := named(n)
	if len(parts) == 1 {
		switch parts[0].Type() {
		case "assignment":
			return c.assignment(n, parts[0])
		case "augmented_assignment":
			a := parts[0]
			return &AugAssign{
				stmtBase: stmtBase{c.newBase(n)},
				Target:   c.expr(a.ChildByFieldName("left")),
				Op:       BinaryOperator(a.ChildByFieldName("operator").Type()),
				Value:    c.expr(a.ChildByFieldName("right")),
			}
		}
	}
	s := &ExprStmt{stmtBase: stmtBase{c.newBase(n)}}
	switch len(parts) {
	case 0:
	case 1:
		s.Value = c.expr(parts[0])
	default:
		t := &Tuple{}
		t.base = c.newBase(n)
		for _, p := range parts {
			t.Elts = append(t.Elts, c.expr(p))
		}
		s.Value = t
	}
	return s
}

func (c *converter) assignment(stmt, n *sitter.Node) Stmt {
	left := c.expr(n.ChildByFieldName("left"))
	right := n.ChildByFieldName("right")
	if typ := n.ChildByFieldName("type"); typ != nil {
		s := &AnnAssign{
			stmtBase:   stmtBase{c.newBase(stmt)},
			Target:     left,
			Annotation: c.expr(typ),
		}
		if right != nil {
			s.Value = c.expr(right)
		}
		return s
	}

	s := &Assign{stmtBase: stmtBase{c.newBase(stmt)}, Targets: []Expr{left}}
	// a = b = value nests assignments on the right.
	for right != nil && right.Type() == "assignment" {
		s.Targets = append(s.Targets, c.expr(right.ChildByFieldName("left")))
		right = right.ChildByFieldName("right")
	}
	if right != nil {
		s.Value = c.expr(right)
	}
	return s
}

func (c *converter) aliases(nodes []*sitter.Node) []Alias {
	var out []Alias
	for _, n := range nodes {
		switch n.Type() {
		case "dotted_name", "identifier":
			out = append(out, Alias{Name: c.text(n)})
		case "aliased_import":
			out = append(out, Alias{
				Name:   c.text(n.ChildByFieldName("name")),
				AsName: c.text(n.ChildByFieldName("alias")),
			})
		}
	}
	return out
}

func (c *converter) importFrom(n *sitter.Node) *ImportFrom {
	s := &ImportFrom{stmtBase: stmtBase{c.newBase(n)}}
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode != nil {
		text := c.text(moduleNode)
		trimmed := strings.TrimLeft(text, ".")
		s.Level = len(text) - len(trimmed)
		s.Module = strings.TrimSpace(trimmed)
	}
	var names []*sitter.Node
	for _, child := range named(n) {
		if sameNode(child, moduleNode) {
			continue
		}
		if child.Type() == "wildcard_import" {
			s.Wildcard = true
			continue
		}
		names = append(names, child)
	}
	s.Names = c.aliases(names)
	return s
}
