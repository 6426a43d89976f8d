package syntax

// Kind identifies the variant of a syntax node. Its String form is the
// class-style name used for default labels ("If", "Call", ...).
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindModule
	KindFunctionDef
	KindClassDef
	KindArguments
	KindIf
	KindFor
	KindWhile
	KindTry
	KindExceptHandler
	KindWith
	KindWithItem
	KindMatch
	KindMatchCase
	KindPattern
	KindAssign
	KindAugAssign
	KindAnnAssign
	KindReturn
	KindExpr
	KindRaise
	KindPass
	KindBreak
	KindContinue
	KindImport
	KindImportFrom
	KindName
	KindAttribute
	KindCall
	KindKeyword
	KindBinOp
	KindUnaryOp
	KindBoolOp
	KindCompare
	KindConstant
	KindList
	KindTuple
	KindSet
	KindDict
	KindSubscript
	KindStarred
)

var kindNames = [...]string{
	KindUnsupported:   "Unsupported",
	KindModule:        "Module",
	KindFunctionDef:   "FunctionDef",
	KindClassDef:      "ClassDef",
	KindArguments:     "arguments",
	KindIf:            "If",
	KindFor:           "For",
	KindWhile:         "While",
	KindTry:           "Try",
	KindExceptHandler: "ExceptHandler",
	KindWith:          "With",
	KindWithItem:      "withitem",
	KindMatch:         "Match",
	KindMatchCase:     "match_case",
	KindPattern:       "Pattern",
	KindAssign:        "Assign",
	KindAugAssign:     "AugAssign",
	KindAnnAssign:     "AnnAssign",
	KindReturn:        "Return",
	KindExpr:          "Expr",
	KindRaise:         "Raise",
	KindPass:          "Pass",
	KindBreak:         "Break",
	KindContinue:      "Continue",
	KindImport:        "Import",
	KindImportFrom:    "ImportFrom",
	KindName:          "Name",
	KindAttribute:     "Attribute",
	KindCall:          "Call",
	KindKeyword:       "keyword",
	KindBinOp:         "BinOp",
	KindUnaryOp:       "UnaryOp",
	KindBoolOp:        "BoolOp",
	KindCompare:       "Compare",
	KindConstant:      "Constant",
	KindList:          "List",
	KindTuple:         "Tuple",
	KindSet:           "Set",
	KindDict:          "Dict",
	KindSubscript:     "Subscript",
	KindStarred:       "Starred",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Unsupported"
}

// Slot is the structural position of a node within the parses of one
// Parser. Slots are never reused, so two distinct node instances never
// share one.
type Slot uint64

// Pos is a 1-based source position.
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is implemented by every syntax tree variant. The set of variants is
// closed: only types in this package implement it.
type Node interface {
	Kind() Kind
	Slot() Slot
	Pos() Pos
	// Children returns the structural children in source order.
	Children() []Node
	node()
}

// Stmt is a statement-kind node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression-kind node.
type Expr interface {
	Node
	exprNode()
}

type base struct {
	slot Slot
	pos  Pos
}

func (b *base) Slot() Slot { return b.slot }
func (b *base) Pos() Pos   { return b.pos }
func (b *base) node()      {}

type stmtBase struct{ base }

func (stmtBase) stmtNode() {}

type exprBase struct{ base }

func (exprBase) exprNode() {}

// appendNodes appends the non-nil entries of nodes to dst. Converters never
// store typed nil pointers in interface fields, so a nil check is enough.
func appendNodes[T Node](dst []Node, nodes ...T) []Node {
	for _, n := range nodes {
		if Node(n) != nil {
			dst = append(dst, n)
		}
	}
	return dst
}

func stmtsToNodes(stmts []Stmt) []Node {
	out := make([]Node, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, s)
	}
	return out
}
