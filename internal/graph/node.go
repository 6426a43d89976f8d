package graph

import (
	"strconv"

	"github.com/zheng/pyflow/internal/syntax"
)

// NodeID identifies one drawn box: a syntax node slot under the expansion
// prefix of the call site that inlined it. Top-level nodes have an empty
// prefix, so "|12" is slot 12 of the entry body and "|12|40" is slot 40
// inlined at the call drawn as "|12".
type NodeID string

// Identity builds the NodeID of slot under prefix.
func Identity(prefix NodeID, slot syntax.Slot) NodeID {
	return NodeID(string(prefix) + "|" + strconv.FormatUint(uint64(slot), 10))
}

// NodeKind is the syntax kind a node was drawn for.
type NodeKind string

const (
	NodeKindFunction  NodeKind = "FunctionDef"
	NodeKindClass     NodeKind = "ClassDef"
	NodeKindArguments NodeKind = "arguments"
	NodeKindCall      NodeKind = "Call"
	NodeKindIf        NodeKind = "If"
	NodeKindFor       NodeKind = "For"
	NodeKindWhile     NodeKind = "While"
	NodeKindTry       NodeKind = "Try"
	NodeKindHandler   NodeKind = "ExceptHandler"
	NodeKindWith      NodeKind = "With"
	NodeKindWithItem  NodeKind = "withitem"
	NodeKindMatch     NodeKind = "Match"
	NodeKindCase      NodeKind = "match_case"
	NodeKindBreak     NodeKind = "Break"
	NodeKindContinue  NodeKind = "Continue"
	NodeKindReturn    NodeKind = "Return"
	NodeKindLoopExit  NodeKind = "LoopExit"
)

// KindOf maps a syntax kind to its node kind.
func KindOf(k syntax.Kind) NodeKind {
	return NodeKind(k.String())
}

// Node is a box in the flow graph
type Node struct {
	ID     NodeID   `json:"id"`
	Label  string   `json:"label"`
	Kind   NodeKind `json:"kind"`
	Region string   `json:"region,omitempty"` // 所在区域 ID，空表示顶层
	Line   int      `json:"line"`             // 源码行号
	Depth  int      `json:"depth"`            // 内联展开深度
}
